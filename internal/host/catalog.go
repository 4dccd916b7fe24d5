// Copyright 2026 The CyberCode Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package host

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

var imageNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{0,63}$`)

// Catalog is the allow-list mapping public image names to host image
// references. Only images in the catalog can be launched.
type Catalog struct {
	images map[string]string
}

type catalogFile struct {
	Images map[string]string `yaml:"images"`
}

// DefaultCatalog returns the built-in image set.
func DefaultCatalog() *Catalog {
	return &Catalog{images: map[string]string{
		"ubuntu-22.04": "ubuntu:22.04",
		"ubuntu-24.04": "ubuntu:24.04",
		"debian-12":    "images:debian/12",
		"alpine-3.20":  "images:alpine/3.20",
		"rockylinux-9": "images:rockylinux/9",
	}}
}

// NewCatalog validates and copies images.
func NewCatalog(images map[string]string) (*Catalog, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("image catalog is empty")
	}
	c := &Catalog{images: make(map[string]string, len(images))}
	for name, ref := range images {
		if !imageNamePattern.MatchString(name) {
			return nil, fmt.Errorf("invalid image name %q", name)
		}
		if !imageRefPattern.MatchString(ref) {
			return nil, fmt.Errorf("invalid image reference %q for %s", ref, name)
		}
		c.images[name] = ref
	}
	return c, nil
}

// LoadCatalog reads a YAML catalog of the form:
//
//	images:
//	  ubuntu-22.04: ubuntu:22.04
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image catalog: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse image catalog: %w", err)
	}
	return NewCatalog(f.Images)
}

// Resolve returns the host reference for a public image name.
func (c *Catalog) Resolve(name string) (string, bool) {
	ref, ok := c.images[name]
	return ref, ok
}

// Names lists the allowed image names in order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.images))
	for name := range c.images {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
