package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/concordlabs/concord/internal/plan"
)

var validateCmd = &cobra.Command{
	Use:   "validate <plan.yaml>",
	Short: "Validate a coordination plan file",
	Long: `Parse a plan file and check it for structural problems:
duplicate or missing IDs, references to unknown objectives or tasks,
and circular dependencies. A valid plan is summarized with one
dependency-respecting execution order for its tasks.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	p, err := plan.Load(args[0])
	if err != nil {
		color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "invalid: %v\n", err)
		return fmt.Errorf("plan validation failed")
	}

	g, err := p.Graph()
	if err != nil {
		color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "invalid: %v\n", err)
		return fmt.Errorf("plan validation failed")
	}
	order, err := g.TopologicalSort()
	if err != nil {
		color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "invalid: %v\n", err)
		return fmt.Errorf("plan validation failed")
	}

	color.New(color.FgGreen).Printf("ok: ")
	fmt.Printf("%q declares %d objectives and %d tasks\n", p.Name, len(p.Objectives), g.Size())
	fmt.Println("execution order:")
	for i, id := range order {
		task := g.GetTask(id)
		if len(task.DependsOn) > 0 {
			fmt.Printf("  %2d. %s  (%s, after %v)\n", i+1, id, task.Title, task.DependsOn)
			continue
		}
		fmt.Printf("  %2d. %s  (%s)\n", i+1, id, task.Title)
	}
	return nil
}
