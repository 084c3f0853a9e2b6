// surfnorm is a CLI utility for normalizing GIFTI surface meshes.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/oesteban/surfnorm/internal/config"
	"github.com/oesteban/surfnorm/internal/logger"
	"github.com/oesteban/surfnorm/pkg/gifti"
	"github.com/oesteban/surfnorm/pkg/surface"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load(os.Getenv("SURFNORM_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "normalize", "norm":
		cmdNormalize(cfg, args)
	case "apply":
		cmdApply(cfg, args)
	case "info":
		cmdInfo(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`surfnorm - GIFTI surface normalization utility

Usage:
  surfnorm <command> [options]

Commands:
  normalize <in.gii> [options]       Re-center surface using its embedded offset
  apply <in.gii> <xfm> [options]     Apply an affine transform (MAT or LTA)
  info <in.gii>                      Show surface information

Options (normalize):
  -xfm <file>      Additional transform applied after recentring
  -outdir <dir>    Output directory

Options (apply):
  -invert          Apply the inverse of the transform
  -center          Shift to absolute coordinates after the transform
  -outdir <dir>    Output directory

Examples:
  surfnorm normalize lh.midthickness.gii
  surfnorm apply lh.white.surf.gii anat2target.lta -invert -center`)
}

func cmdNormalize(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("normalize", flag.ExitOnError)
	xfm := fs.String("xfm", "", "transform file applied after recentring")
	outDir := fs.String("outdir", cfg.Surfaces.OutputDir, "output directory")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: surfnorm normalize <in.gii> [-xfm file] [-outdir dir]")
		os.Exit(1)
	}

	norm := surface.New(*outDir, logger.Log)
	out, err := norm.Normalize(fs.Arg(0), *xfm)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(out)
}

func cmdApply(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("apply", flag.ExitOnError)
	invert := fs.Bool("invert", cfg.Surfaces.InvertTransform, "apply the inverse transform")
	center := fs.Bool("center", cfg.Surfaces.CenterCoords, "shift to absolute coordinates")
	outDir := fs.String("outdir", cfg.Surfaces.OutputDir, "output directory")
	_ = fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: surfnorm apply <in.gii> <xfm> [-invert] [-center] [-outdir dir]")
		os.Exit(1)
	}

	norm := surface.New(*outDir, logger.Log)
	out, err := norm.ApplyTransform(fs.Arg(0), fs.Arg(1), surface.ApplyOptions{
		Invert: *invert,
		Center: *center,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(out)
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: surfnorm info <in.gii>")
		os.Exit(1)
	}

	img, err := gifti.ParseFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("File:    %s\n", args[0])
	fmt.Printf("Version: %s\n", img.Version)
	fmt.Printf("Arrays:  %d\n", len(img.Arrays))

	for i, da := range img.Arrays {
		fmt.Printf("\nDataArray %d:\n", i)
		fmt.Printf("  Intent:   %s\n", da.Intent)
		fmt.Printf("  DataType: %s\n", da.DataType)
		fmt.Printf("  Dims:     %v\n", da.Dims)
		fmt.Printf("  Encoding: %s\n", da.Encoding)
		if cs := da.CoordSys; cs != nil {
			fmt.Printf("  Space:    %s -> %s\n", cs.DataSpace, cs.TransformedSpace)
		}
		for _, p := range da.Meta {
			fmt.Printf("  Meta:     %s = %s\n", p.Name, p.Value)
		}
	}
}
