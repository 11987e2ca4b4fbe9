// Command e57dump inspects E57 files: it prints a YAML summary of the
// point sets a file contains, extracts the embedded XML document, and
// exports selected components of a point set to a .pts text file.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"

	"github.com/lidarlab/go-e57/e57"
)

func main() {
	info := flag.Bool("info", false, "print a YAML summary of the file")
	set := flag.Int("set", 0, "point set index for -pts")
	xmlOut := flag.String("xml", "", "extract the embedded XML document to this file")
	ptsOut := flag.String("pts", "", "export the selected point set to this .pts file")
	fields := flag.String("fields", "cartesianX,cartesianY,cartesianZ", "comma-separated component roles for -pts")
	verbose := flag.Bool("v", false, "debug logging")
	trace := flag.Bool("vv", false, "trace logging (per-packet detail)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [options] <file.e57>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	if *trace {
		level = zerolog.TraceLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).Level(level).With().Timestamp().Logger()

	if err := run(log, flag.Arg(0), *info, *set, *xmlOut, *ptsOut, *fields); err != nil {
		log.Error().Err(err).Msg("e57dump failed")
		os.Exit(1)
	}
}

func run(log zerolog.Logger, path string, info bool, set int, xmlOut, ptsOut, fields string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	st, err := src.Stat()
	if err != nil {
		return err
	}

	f, err := e57.Open(src, uint64(st.Size()), log)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if xmlOut != "" {
		doc, err := f.RawXML()
		if err != nil {
			return err
		}
		if err := os.WriteFile(xmlOut, doc, 0o644); err != nil {
			return err
		}
		log.Info().Str("path", xmlOut).Int("bytes", len(doc)).Msg("wrote xml document")
	}

	if info {
		if err := printInfo(f); err != nil {
			return err
		}
	}

	if ptsOut != "" {
		if err := writePts(log, f, set, strings.Split(fields, ","), ptsOut); err != nil {
			return err
		}
	}
	return nil
}

// YAML summary structures for -info.
type componentInfo struct {
	Role     string  `yaml:"role"`
	Type     string  `yaml:"type"`
	Minimum  float64 `yaml:"minimum"`
	Maximum  float64 `yaml:"maximum"`
	Scale    float64 `yaml:"scale,omitempty"`
	Offset   float64 `yaml:"offset,omitempty"`
	BitWidth uint8   `yaml:"bitWidth,omitempty"`
}

type pointSetInfo struct {
	Name        string          `yaml:"name,omitempty"`
	GUID        string          `yaml:"guid,omitempty"`
	FileOffset  uint64          `yaml:"fileOffset"`
	RecordCount uint64          `yaml:"recordCount"`
	Components  []componentInfo `yaml:"components"`
}

type fileInfo struct {
	Version   string         `yaml:"version"`
	PageSize  uint64         `yaml:"pageSize"`
	PointSets []pointSetInfo `yaml:"pointSets"`
}

func printInfo(f *e57.File) error {
	major, minor := f.Version()
	out := fileInfo{
		Version:  fmt.Sprintf("%d.%d", major, minor),
		PageSize: f.Header().PageSize,
	}
	for _, ps := range f.PointSets() {
		psi := pointSetInfo{
			Name:        ps.Name,
			GUID:        ps.GUID,
			FileOffset:  ps.FileOffset,
			RecordCount: ps.RecordCount,
		}
		for _, c := range ps.Components {
			ci := componentInfo{
				Role: c.Role.String(),
				Type: c.Type.String(),
			}
			if c.Type.IsInteger() {
				ci.Minimum = float64(c.Min)
				ci.Maximum = float64(c.Max)
				ci.Scale = c.Scale
				ci.Offset = c.Offset
				ci.BitWidth = c.BitWidth
			} else {
				ci.Minimum = c.RealMin
				ci.Maximum = c.RealMax
			}
			psi.Components = append(psi.Components, ci)
		}
		out.PointSets = append(out.PointSets, psi)
	}

	doc, err := yaml.Marshal(out)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(doc)
	return err
}

// writePts streams one point set to a .pts text file: a count line, then
// one line per record with the selected components in order.
func writePts(log zerolog.Logger, f *e57.File, set int, roles []string, path string) error {
	sets := f.PointSets()
	if set < 0 || set >= len(sets) {
		return fmt.Errorf("point set %d out of range (%d sets)", set, len(sets))
	}
	ps := sets[set]

	lanes := len(roles)
	fields := make([]e57.Field, lanes)
	for i, name := range roles {
		role, ok := e57.RoleByName(strings.TrimSpace(name))
		if !ok {
			return fmt.Errorf("unknown component role %q", name)
		}
		stream := -1
		for j, c := range ps.Components {
			if c.Role == role {
				stream = j
				break
			}
		}
		if stream < 0 {
			return fmt.Errorf("point set %d has no %s component", set, role)
		}
		fields[i] = e57.Field{Offset: i, Stride: lanes, Stream: stream}
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	w := bufio.NewWriter(out)
	fmt.Fprintf(w, "%d\n", ps.RecordCount)

	const capacity = 4096
	buf := make([]float32, lanes*capacity)
	var written uint64
	err = f.ReadPoints(e57.ReadArgs{
		Set:      set,
		Buffer:   buf,
		Fields:   fields,
		Capacity: capacity,
		Consume: func(cnt int) bool {
			for i := 0; i < cnt; i++ {
				for j := 0; j < lanes; j++ {
					if j > 0 {
						w.WriteByte(' ')
					}
					w.WriteString(strconv.FormatFloat(float64(buf[lanes*i+j]), 'g', -1, 32))
				}
				w.WriteByte('\n')
			}
			written += uint64(cnt)
			return true
		},
	})
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	log.Info().Str("path", path).Uint64("records", written).Msg("wrote pts file")
	return nil
}
