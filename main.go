/*
  scm2asm compiles Scheme source files to x86-64 assembly.

  Usage: scm2asm [-l] [-o dir] file.scm ...

  Each file.scm becomes file.asm, to be assembled and linked against
  the runtime by the external build rule.  With no file names, or with
  "-", an interactive inspect loop shows each compilation stage of the
  forms typed into it.
*/
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/xyproto/env/v2"

	"github.com/nukata/scheme-compiler-in-go/scheme"
)

// Main compiles each element of args as a name of a Scheme source
// file.  It ignores args[0].  If it does not have args[1] or some
// element is "-", it begins the inspect loop.
func Main(args []string) int {
	flags := flag.NewFlagSet(args[0], flag.ContinueOnError)
	list := flags.Bool("l", env.Bool("SCM2ASM_LIST"),
		"print each analyzed top-level form")
	outDir := flags.String("o", env.Str("SCM2ASM_OUT", "."),
		"directory for the generated .asm files")
	if err := flags.Parse(args[1:]); err != nil {
		return 2
	}
	files := flags.Args()
	if len(files) == 0 {
		files = []string{"-"}
	}
	for _, name := range files {
		if name == "-" {
			inspectLoop()
			continue
		}
		if err := compileFile(name, *outDir, *list); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
	return 0
}

func compileFile(name, outDir string, list bool) error {
	src, err := os.ReadFile(name)
	if err != nil {
		return err
	}
	c := scheme.NewCompiler()
	c.ListAnalyzed = list
	asm, err := c.CompileProgram(string(src))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	for _, line := range c.Listing {
		fmt.Println(line)
	}
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return os.WriteFile(filepath.Join(outDir, base+".asm"), []byte(asm), 0644)
}

// inspectLoop reads forms interactively and shows each stage of their
// compilation.  ":asm" switches to whole-program assembly output and
// ":ast" back to the analyzed rendering.
func inspectLoop() {
	rl := liner.NewLiner()
	defer rl.Close()
	rl.SetCtrlCAborts(true)
	prompt := env.Str("SCM2ASM_PROMPT", "> ")
	showAsm := false
	for {
		text, err := rl.Prompt(prompt)
		if err != nil {
			fmt.Println("Goodbye")
			return
		}
		text = strings.TrimSpace(text)
		switch text {
		case "":
			continue
		case ":asm":
			showAsm = true
			continue
		case ":ast":
			showAsm = false
			continue
		}
		rl.AppendHistory(text)
		if showAsm {
			asm, err := scheme.NewCompiler().CompileProgram(text)
			if err != nil {
				fmt.Println(err)
				continue
			}
			fmt.Print(asm)
			continue
		}
		forms, err := scheme.ReadAll(text)
		if err != nil {
			fmt.Println(err)
			continue
		}
		for _, f := range forms {
			fmt.Println(scheme.Str(f))
			e, err := scheme.AnalyzeForm(f)
			if err != nil {
				fmt.Println(err)
				continue
			}
			fmt.Println(scheme.ExprString(e))
		}
	}
}

func main() {
	os.Exit(Main(os.Args))
}
