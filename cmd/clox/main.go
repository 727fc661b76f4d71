// Command clox runs the bytecode interpreter: interactively as a REPL with
// no arguments, or over a single source file.
package main

import (
	"flag"
	"fmt"
	"os"

	"clox-go/internal/compiler"
	"clox-go/internal/vm"

	"github.com/chzyer/readline"
)

func main() {
	showDisassemble := flag.Bool("disassemble", false, "print bytecode disassembly before running")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: clox [path]\n\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()

	switch len(args) {
	case 0:
		runREPL(*showDisassemble)
	case 1:
		runFile(args[0], *showDisassemble)
	default:
		fmt.Fprintln(os.Stderr, "Usage: clox [path]")
		os.Exit(64)
	}
}

func runFile(path string, showDisassemble bool) {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid file at %s\n", path)
		os.Exit(74)
	}

	machine := vm.New()
	if showDisassemble {
		disassemble(string(source))
	}

	if err := machine.Interpret(string(source)); err != nil {
		switch err.(type) {
		case *vm.CompileError:
			fmt.Fprintln(os.Stderr, err)
			os.Exit(65)
		case *vm.RuntimeError:
			os.Exit(70)
		default:
			os.Exit(70)
		}
	}
}

// runREPL reads one line at a time and interprets it immediately, sharing
// one VM instance so global variables persist across lines (spec.md §5).
func runREPL(showDisassemble bool) {
	rl, err := readline.New("> ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(74)
	}
	defer rl.Close()

	fmt.Println("Type 'exit' to quit.")

	machine := vm.New()

	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF or readline.ErrInterrupt
			return
		}
		if line == "exit" {
			return
		}

		if showDisassemble {
			disassemble(line)
		}

		if err := machine.Interpret(line); err != nil {
			// RuntimeError has already written its message to stderr by the
			// time Interpret returns it (spec.md §7); only CompileError
			// still needs printing here.
			if _, ok := err.(*vm.CompileError); ok {
				fmt.Fprintln(os.Stderr, err)
			}
		}
	}
}

func disassemble(source string) {
	c, err := compiler.Compile(source)
	if err != nil {
		return
	}
	c.Disassemble("script")
}
