package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCombineCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "combine [source...]",
		Short: "Merge crawled pages into a single reference file",
		Long: `Concatenates the markdown pages of every source (or only the sources
named as arguments) into one reference document with a table of contents.`,

		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			names, err := selectSources(e.cfg, args)
			if err != nil {
				return err
			}
			return combineSources(e, names, outPath)
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "reference.md", "combined output file")
	return cmd
}

func combineSources(e *env, names []string, outPath string) error {
	type section struct {
		source string
		pages  []string
	}
	sections := make([]section, 0, len(names))
	for _, name := range names {
		src := e.cfg.Sources[name]
		dir := src.OutputDir
		if dir == "" {
			dir = filepath.Join(e.cfg.Output.Dir, name)
		}
		pages, err := filepath.Glob(filepath.Join(dir, "*.md"))
		if err != nil {
			return fmt.Errorf("list pages for %s: %w", name, err)
		}
		if len(pages) == 0 {
			e.logger.Warn("no pages for source", zap.String("source", name), zap.String("dir", dir))
			continue
		}
		sort.Strings(pages)
		sections = append(sections, section{source: name, pages: pages})
	}
	if len(sections) == 0 {
		return fmt.Errorf("nothing to combine")
	}

	out, err := os.Create(outPath) //nolint:gosec // user-chosen output path
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	defer out.Close() //nolint:errcheck // write errors surface below

	toc := make([]string, 0, len(sections))
	for _, sec := range sections {
		toc = append(toc, markdown.Link(sec.source, "#"+sec.source))
	}
	header := markdown.NewMarkdown(out).
		H1("Documentation Reference").
		PlainText("Combined crawl output.").
		PlainText("").
		H2("Contents").
		BulletList(toc...)
	if err := header.Build(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	total := 0
	for _, sec := range sections {
		if _, err := fmt.Fprintf(out, "\n---\n\n## %s\n\n", sec.source); err != nil {
			return fmt.Errorf("write section %s: %w", sec.source, err)
		}
		for _, page := range sec.pages {
			content, err := os.ReadFile(page) //nolint:gosec // paths come from our glob
			if err != nil {
				return fmt.Errorf("read %s: %w", page, err)
			}
			if _, err := out.Write(content); err != nil {
				return fmt.Errorf("append %s: %w", page, err)
			}
			if !strings.HasSuffix(string(content), "\n") {
				if _, err := out.WriteString("\n"); err != nil {
					return fmt.Errorf("append %s: %w", page, err)
				}
			}
			total++
		}
	}

	e.logger.Info("reference combined",
		zap.String("out", outPath),
		zap.Int("sources", len(sections)),
		zap.Int("pages", total),
	)
	return nil
}
