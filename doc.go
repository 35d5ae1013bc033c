/*
Package kiln is a declarative build-plan engine for image and firmware style builds.

A plan is a registry of named groups. Each group is a step, a sequence, a parallel set, or a
reference to another group. Flattening a group yields a DAG of vertices whose actions are shell
commands, host-side expressions, or assertions. The same DAG can be lowered two ways:

  - Direct execution runs one vertex at a time in deterministic order, skipping commands whose
    outputs are still fresh according to the fingerprint store.
  - Ninja serialization writes a build.ninja file, folding writers of the same output set into
    one build entry and turning runtime values into shell substitutions.

# Usage

Plans are usually written as YAML documents:

	name: hello
	groups:
	  all:
	    step:
	      label: greet
	      cmd: [sh, -c, "echo hello > build/hello.txt"]
	      outputs: [build/hello.txt]

and loaded with New:

	eng, err := kiln.New("plan.yaml")
	if err != nil {
		log.Fatal(err)
	}

	// Run directly
	report, err := eng.Run(ctx, "", nil)

	// Or hand the plan to ninja
	f, _ := os.Create("build.ninja")
	defer f.Close()
	err = eng.Ninja(f, "", nil)

Plans built in Go with the dsl package are passed through WithRegistry instead of a path.
Variables declared in a document's types section (or through WithTypes) are coerced before
every run, so overrides given as strings reach guards as booleans or integers.

Runs sharing a fingerprint store with other processes should pass WithLocker, so their
load-run-save cycles do not interleave.
*/
package kiln
