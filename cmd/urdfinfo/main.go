// Command urdfinfo loads a robot description the way the panel does and
// prints its joints and the world position of every link.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"

	"urdfpanel/panel/model"
	"urdfpanel/panel/options"
	"urdfpanel/panel/quarkgl"
	"urdfpanel/panel/urdf"
)

type cli struct {
	Locator string            `arg:"" optional:"" help:"Description file or http(s) URL. Defaults to the variant under --assets."`
	Variant string            `help:"Model variant (ur16e, ur10e)." default:"ur16e"`
	Assets  string            `help:"Directory or URL holding <variant>.urdf." default:"assets/ur_description/urdf"`
	Set     map[string]string `help:"Joint values in radians, e.g. --set shoulder_pan_joint=1.57."`
	Timeout time.Duration     `help:"Load timeout." default:"30s"`
}

func main() {
	var c cli
	kctx := kong.Parse(&c,
		kong.Name("urdfinfo"),
		kong.Description("Inspect a robot description."),
		kong.UsageOnError(),
	)
	kctx.FatalIfErrorf(run(os.Stdout, c))
}

func run(w io.Writer, c cli) error {
	locator := c.Locator
	if locator == "" {
		v, err := options.ParseVariant(c.Variant)
		if err != nil {
			return err
		}
		locator = v.Locator(c.Assets)
	}
	loader := model.NewFetchLoader(model.FetchOptions{Timeout: c.Timeout})
	defer loader.Close()
	m, err := loader.Load(context.Background(), locator)
	if err != nil {
		return err
	}
	defer m.Dispose()

	for name, raw := range c.Set {
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return fmt.Errorf("--set %s: %w", name, err)
		}
		if !m.SetJointValue(name, v) {
			return fmt.Errorf("--set %s: no such joint", name)
		}
	}
	return report(w, m)
}

func report(w io.Writer, m *urdf.Model) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "robot %s: %d links, %d joints\n\n", m.Name, len(m.Links), len(m.JointNames()))
	fmt.Fprintln(tw, "JOINT\tTYPE\tPARENT\tCHILD\tLOWER\tUPPER\tVALUE")
	for _, name := range m.JointNames() {
		j, _ := m.Joint(name)
		lower, upper := "-", "-"
		if j.Limited() {
			lower = strconv.FormatFloat(j.Lower, 'f', 4, 64)
			upper = strconv.FormatFloat(j.Upper, 'f', 4, 64)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%.4f\n", j.Name, j.Type, j.Parent, j.Child, lower, upper, j.Value())
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "LINK\tX\tY\tZ")
	links := make([]string, 0, len(m.Links))
	for name := range m.Links {
		links = append(links, name)
	}
	sort.Strings(links)
	for _, name := range links {
		p := quarkgl.Mat4MulPoint(m.Links[name].WorldTransform(), quarkgl.Vec3{})
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.4f\n", name, p.X, p.Y, p.Z)
	}
	return tw.Flush()
}
