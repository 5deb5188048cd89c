package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"aura-go/internal/logger"
	"aura-go/models"
)

func modelsCmd() *cli.Command {
	var f flagValues

	return &cli.Command{
		Name:  "models",
		Usage: "List the models in the models directory",
		Flags: flagsOf(&f, modelFlags),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, vals, err := resolve(ctx, cmd, &f)
			if err != nil {
				return err
			}
			if err := models.EnsureDir(vals.ModelsDir); err != nil {
				return err
			}

			catalog := models.NewCatalog(models.WithLogger(logger.FromContext(ctx)))
			defer catalog.Close()

			infos, err := catalog.List(vals.ModelsDir)
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Printf("No models in %s\n", vals.ModelsDir)
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSIZE\tTOKENIZER\tID")
			for _, info := range infos {
				tok := "missing"
				if info.HasTokenizer {
					tok = "yes"
				}
				fmt.Fprintf(w, "%s\t%.1f MB\t%s\t%s\n", info.Name, info.SizeMB, tok, info.ShortID())
			}
			return w.Flush()
		},
	}
}
