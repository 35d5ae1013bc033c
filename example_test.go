package kiln_test

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/aretw0/kiln"
	"github.com/aretw0/kiln/pkg/adapters/memory"
	"github.com/aretw0/kiln/pkg/domain"
	"github.com/aretw0/kiln/pkg/dsl"
)

// printRunner stands in for real subprocesses.
type printRunner struct{}

func (printRunner) Run(_ context.Context, inv domain.Invocation) (domain.ProcessResult, error) {
	fmt.Println("exec:", strings.Join(inv.Argv, " "))
	return domain.ProcessResult{}, nil
}

func bootloader() *dsl.Builder {
	b := dsl.New()
	codegen := b.Group("codegen", dsl.Cmd("constcodegen", "-t", "build/").
		In("constants.toml").Out("build/constants.asm"))
	b.Group("boot", dsl.Seq(
		dsl.Run(dsl.Cmd("nasm", "-f", "bin", "-o", "build/stage0.bin", "src/stage0.asm").
			In("src/stage0.asm").Out("build/stage0.bin")).Requires(codegen),
		dsl.Do(dsl.Assert("stage0 fits in a sector", func(*domain.Context) (bool, error) { return true, nil })),
	))
	return b
}

// ExampleNew_library demonstrates how to use kiln purely as a Go library,
// building the plan with the DSL instead of reading a plan document.
func ExampleNew_library() {
	eng, err := kiln.New("",
		kiln.WithRegistry(bootloader().Registry(), "boot"),
		kiln.WithStore(memory.NewStore()),
		kiln.WithProcessRunner(printRunner{}),
	)
	if err != nil {
		log.Fatal(err)
	}

	report, err := eng.Run(context.Background(), "", nil)
	if err != nil {
		log.Fatal(err)
	}
	for _, s := range report.Steps {
		fmt.Println(s.Step, s.Outcome)
	}
	// Output:
	// exec: constcodegen -t build/
	// exec: nasm -f bin -o build/stage0.bin src/stage0.asm
	// codegen#1 ran
	// boot#1 ran
	// boot#2 evaluated
}

// ExampleEngine_Ninja lowers the same plan to a ninja file.
func ExampleEngine_Ninja() {
	eng, err := kiln.New("", kiln.WithRegistry(bootloader().Registry(), "boot"))
	if err != nil {
		log.Fatal(err)
	}

	var buf bytes.Buffer
	if err := eng.Ninja(&buf, "", nil); err != nil {
		log.Fatal(err)
	}
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "rule ") && !strings.HasPrefix(line, "build ") {
			fmt.Println(line)
		}
	}
	// Output:
	// ninja_required_version = 1.10
	// builddir = build/
	//
	//   command = constcodegen -t build/
	//
	//   command = nasm -f bin -o build/stage0.bin src/stage0.asm
	//
	// default build/stage0.bin
}
