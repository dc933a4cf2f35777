package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	bmesh "github.com/flywave/go-bmesh"
)

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "deduplicate glTF meshes and write BMESH",
		ArgsUsage: "<scene.gltf|scene.glb>...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "TOML config file"},
			&cli.UintFlag{Name: "format", Aliases: []string{"f"}, Usage: "container version, 1 or 2"},
			&cli.BoolFlag{Name: "compress", Aliases: []string{"z"}, Usage: "zlib-compress v2 payloads"},
			&cli.IntFlag{Name: "level", Usage: "zlib compression level"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output file (v1) or directory (v2)"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
		},
		Action: runExport,
	}
}

func exportConfig(ctx *cli.Context) (*bmesh.Config, error) {
	cfg := bmesh.DefaultConfig()
	if path := ctx.String("config"); path != "" {
		var err error
		if cfg, err = bmesh.LoadConfig(path); err != nil {
			return nil, err
		}
	}
	if ctx.IsSet("format") {
		f := ctx.Uint("format")
		if f > math.MaxUint8 {
			return nil, fmt.Errorf("format %d out of range", f)
		}
		cfg.Format = uint8(f)
	}
	if ctx.IsSet("compress") {
		cfg.Compress = ctx.Bool("compress")
	}
	if ctx.IsSet("level") {
		cfg.CompressionLevel = ctx.Int("level")
	}
	if ctx.IsSet("output") {
		cfg.Output = ctx.String("output")
	}
	if ctx.IsSet("log-level") {
		cfg.LogLevel = ctx.String("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runExport(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return cli.Exit("export needs at least one glTF file", 2)
	}
	cfg, err := exportConfig(ctx)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)

	var objs []bmesh.MeshObject
	for _, path := range ctx.Args().Slice() {
		scene, err := bmesh.OpenGltf(path)
		if err != nil {
			logger.Error("skipping scene", "file", path, "err", err)
			continue
		}
		logger.Debug("loaded scene", "file", path, "objects", len(scene.Objects()))
		objs = append(objs, scene.Objects()...)
	}

	ex := bmesh.NewExporter(cfg.EncodeOptions(), logger)
	sum, err := ex.Export(objs, cfg.Output)
	if err != nil {
		return err
	}
	fmt.Printf("exported %d object(s), %d vertices, %d indices to %d file(s)\n",
		sum.Objects, sum.Vertices, sum.Indices, len(sum.Files))
	return nil
}

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "decode BMESH files and print their contents",
		ArgsUsage: "<file.bmesh>...",
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() == 0 {
				return cli.Exit("info needs at least one file", 2)
			}
			for _, path := range ctx.Args().Slice() {
				ct, err := bmesh.ReadFile(path)
				if err != nil {
					return err
				}
				st := ct.Stats()
				bx := ct.ComputeBBox()
				fmt.Printf("%s: v%d compressed=%v records=%d vertices=%d indices=%d bbox=%v..%v\n",
					path, ct.Format, ct.Compressed, st.Records, st.Vertices, st.Indices, bx.Min, bx.Max)
				for _, r := range ct.Records {
					fmt.Printf("  %-24q vertices=%-8d indices=%-8d triangles=%d\n",
						r.Name, r.VertexCount(), r.IndexCount(), r.TriangleCount())
				}
			}
			return nil
		},
	}
}

func gltfCommand() *cli.Command {
	return &cli.Command{
		Name:      "gltf",
		Usage:     "convert a BMESH file to GLB",
		ArgsUsage: "<in.bmesh> [out.glb]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "padding", Value: 8, Usage: "pad the GLB to a multiple of this many bytes"},
		},
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() < 1 {
				return cli.Exit("gltf needs an input file", 2)
			}
			in := ctx.Args().Get(0)
			out := ctx.Args().Get(1)
			if out == "" {
				out = in[:len(in)-len(filepath.Ext(in))] + ".glb"
			}
			padding := ctx.Int("padding")
			if padding <= 0 {
				return cli.Exit("padding must be positive", 2)
			}
			ct, err := bmesh.ReadFile(in)
			if err != nil {
				return err
			}
			doc, err := bmesh.RecordsToGltf(ct.Records)
			if err != nil {
				return err
			}
			bt, err := bmesh.GetGltfBinary(doc, padding)
			if err != nil {
				return err
			}
			return os.WriteFile(out, bt, 0o644)
		},
	}
}
