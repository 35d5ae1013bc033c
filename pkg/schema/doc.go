// Package schema declares the types of plan variables.
//
// Plan variables arrive untyped: YAML decodes `0x5000` as an int but `--var SMP=true`
// is always a string. A Schema maps variable names to types and coerces each value
// before it seeds the Context, so guards and expressions see the declared type.
//
// Basic usage:
//
//	vars := schema.Schema{
//	    "TARGET":            schema.Enum("x86_64", "aarch64"),
//	    "DISK_SIZE_SECTORS": schema.Int(),
//	    "SMP":               schema.Bool(),
//	    "FEATURES":          schema.Slice(schema.String()),
//	}
//
//	seed, err := schema.Apply(vars, map[string]any{"TARGET": "x86_64", "SMP": "true"})
//	// seed["SMP"] == true
//
// Schemas can be parsed from the `types` section of a plan document:
//
//	types:
//	  TARGET: x86_64|aarch64
//	  DISK_SIZE_SECTORS: int
//	  FEATURES: "[string]"
//
// Variables not named in the schema pass through unchanged.
package schema
