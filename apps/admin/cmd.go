package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"

	"github.com/trezcool/horarios/core"
	"github.com/trezcool/horarios/core/catalog"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db      *sql.DB
	catRepo catalog.Repository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command (up, up-to, down, down-to, redo, reset, status, version)")
	fmt.Println("  addteacher -name NAME  - add a teacher")
	fmt.Println("  addsubject -name NAME  - add a subject")
	fmt.Println("  addlevel -name NAME    - add a level")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "addteacher":
		return cli.runAdd("addteacher", args[2:], cli.addTeacher)
	case "addsubject":
		return cli.runAdd("addsubject", args[2:], cli.addSubject)
	case "addlevel":
		return cli.runAdd("addlevel", args[2:], cli.addLevel)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) runAdd(cmd string, args []string, add func(name string) error) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	name := fs.String("name", "", "The display name.")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return errHelp
		}
		return err
	}
	if core.CleanString(*name) == "" {
		fs.Usage()
		return errHelp
	}
	return add(core.CleanString(*name))
}
