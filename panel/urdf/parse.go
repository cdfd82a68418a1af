// Package urdf reads robot descriptions and builds renderable kinematic
// models from them.
package urdf

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

var ErrInvalidDescription = errors.New("urdf: invalid description")

// Robot is the parsed <robot> document.
type Robot struct {
	XMLName   xml.Name       `xml:"robot"`
	Name      string         `xml:"name,attr"`
	Materials []MaterialSpec `xml:"material"`
	Links     []Link         `xml:"link"`
	Joints    []JointSpec    `xml:"joint"`
}

type Link struct {
	Name    string   `xml:"name,attr"`
	Visuals []Visual `xml:"visual"`
}

type Visual struct {
	Name     string        `xml:"name,attr"`
	Origin   *Origin       `xml:"origin"`
	Geometry GeometrySpec  `xml:"geometry"`
	Material *MaterialSpec `xml:"material"`
}

type Origin struct {
	XYZ string `xml:"xyz,attr"`
	RPY string `xml:"rpy,attr"`
}

type GeometrySpec struct {
	Box *struct {
		Size string `xml:"size,attr"`
	} `xml:"box"`
	Cylinder *struct {
		Radius float64 `xml:"radius,attr"`
		Length float64 `xml:"length,attr"`
	} `xml:"cylinder"`
	Sphere *struct {
		Radius float64 `xml:"radius,attr"`
	} `xml:"sphere"`
	Mesh *struct {
		Filename string `xml:"filename,attr"`
		Scale    string `xml:"scale,attr"`
	} `xml:"mesh"`
}

type MaterialSpec struct {
	Name  string `xml:"name,attr"`
	Color *struct {
		RGBA string `xml:"rgba,attr"`
	} `xml:"color"`
}

type JointSpec struct {
	Name   string  `xml:"name,attr"`
	Type   string  `xml:"type,attr"`
	Origin *Origin `xml:"origin"`
	Parent struct {
		Link string `xml:"link,attr"`
	} `xml:"parent"`
	Child struct {
		Link string `xml:"link,attr"`
	} `xml:"child"`
	Axis *struct {
		XYZ string `xml:"xyz,attr"`
	} `xml:"axis"`
	Limit *struct {
		Lower float64 `xml:"lower,attr"`
		Upper float64 `xml:"upper,attr"`
	} `xml:"limit"`
}

// Parse decodes and validates a description.
func Parse(r io.Reader) (*Robot, error) {
	var robot Robot
	if err := xml.NewDecoder(r).Decode(&robot); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDescription, err)
	}
	if _, err := robot.RootLink(); err != nil {
		return nil, err
	}
	return &robot, nil
}

// RootLink checks the link tree and returns the name of its root.
func (r *Robot) RootLink() (string, error) {
	if len(r.Links) == 0 {
		return "", fmt.Errorf("%w: no links", ErrInvalidDescription)
	}
	links := make(map[string]bool, len(r.Links))
	for _, l := range r.Links {
		if l.Name == "" {
			return "", fmt.Errorf("%w: link without name", ErrInvalidDescription)
		}
		if links[l.Name] {
			return "", fmt.Errorf("%w: link %q defined twice", ErrInvalidDescription, l.Name)
		}
		links[l.Name] = true
	}
	parentOf := make(map[string]string, len(r.Joints))
	names := make(map[string]bool, len(r.Joints))
	for _, j := range r.Joints {
		if j.Name == "" || names[j.Name] {
			return "", fmt.Errorf("%w: joint name %q missing or repeated", ErrInvalidDescription, j.Name)
		}
		names[j.Name] = true
		if !links[j.Parent.Link] || !links[j.Child.Link] {
			return "", fmt.Errorf("%w: joint %q references unknown link", ErrInvalidDescription, j.Name)
		}
		if _, dup := parentOf[j.Child.Link]; dup {
			return "", fmt.Errorf("%w: link %q has two parents", ErrInvalidDescription, j.Child.Link)
		}
		parentOf[j.Child.Link] = j.Parent.Link
	}
	root := ""
	for _, l := range r.Links {
		if _, ok := parentOf[l.Name]; ok {
			continue
		}
		if root != "" {
			return "", fmt.Errorf("%w: links %q and %q are both roots", ErrInvalidDescription, root, l.Name)
		}
		root = l.Name
	}
	if root == "" {
		return "", fmt.Errorf("%w: joint graph has a cycle", ErrInvalidDescription)
	}
	// With one parent per link and a single root, every link reaches the
	// root unless it sits on a cycle.
	for _, l := range r.Links {
		seen := 0
		for n := l.Name; n != root; n = parentOf[n] {
			if seen++; seen > len(r.Links) {
				return "", fmt.Errorf("%w: joint graph has a cycle through %q", ErrInvalidDescription, l.Name)
			}
		}
	}
	return root, nil
}

func parseVec(s string, def r3.Vec) (r3.Vec, error) {
	f := strings.Fields(s)
	if len(f) == 0 {
		return def, nil
	}
	if len(f) != 3 {
		return def, fmt.Errorf("%w: want 3 components, got %q", ErrInvalidDescription, s)
	}
	var v [3]float64
	for i, p := range f {
		x, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return def, fmt.Errorf("%w: %q: %v", ErrInvalidDescription, s, err)
		}
		v[i] = x
	}
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}, nil
}

func parseRGBA(s string) ([4]float64, error) {
	var out [4]float64
	f := strings.Fields(s)
	if len(f) != 4 {
		return out, fmt.Errorf("%w: rgba %q", ErrInvalidDescription, s)
	}
	for i, p := range f {
		x, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return out, fmt.Errorf("%w: rgba %q: %v", ErrInvalidDescription, s, err)
		}
		out[i] = x
	}
	return out, nil
}
