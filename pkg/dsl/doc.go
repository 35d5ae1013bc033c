/*
Package dsl provides a Go DSL for programmatically constructing kiln plans.

It wraps plan.Registry with fluent builders, so build plans can be written in Go
with type checking instead of YAML plan documents.

Example usage:

	package main

	import "github.com/aretw0/kiln/pkg/dsl"

	func main() {
		b := dsl.New()

		codegen := b.Group("codegen", dsl.Cmd("constcodegen", "-t", "build/").
			In("constants.toml").
			Out("build/constants.rs"))

		kernel := b.Group("kernel", dsl.Seq(
			dsl.Run(dsl.Cmd("cargo", "build").Out("build/kernel.a")).Requires(codegen),
			dsl.Run(dsl.Cmd("ld", "-o", "build/kernel.elf", "build/kernel.a").
				In("build/kernel.a").
				Out("build/kernel.elf")).Fresh("kernel_fresh"),
			dsl.Run(dsl.Cmd("strip", "build/kernel.elf").Out("build/kernel.stripped")).Unless("kernel_fresh"),
		))

		dag, err := b.Build(kernel)
		// ... pass dag to kiln.Engine.Run or kiln.Engine.Ninja
	}
*/
package dsl
