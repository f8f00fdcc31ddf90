package hcl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/lazygraph/internal/config"
	"github.com/specialistvlad/lazygraph/internal/ctxlog"
)

// Loader is the HCL implementation of config.Loader.
type Loader struct{}

var _ config.Loader = (*Loader)(nil)

// NewLoader creates a new HCL graph file loader.
func NewLoader() *Loader {
	return &Loader{}
}

// fileRoot decodes every top-level block of a graph file.
type fileRoot struct {
	Data      []*dataBlock     `hcl:"data,block"`
	Variables []*variableBlock `hcl:"variable,block"`
	Proxies   []*proxyBlock    `hcl:"proxy,block"`
	Envs      []*envBlock      `hcl:"env,block"`
	Fetches   []*fetchBlock    `hcl:"fetch,block"`
	Remain    hcl.Body         `hcl:",remain"`
}

// Load parses every .hcl file under paths. Errors of all blocks are
// reported together.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := findHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl files found in %v", paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	model := config.NewModel()
	parser := hclparse.NewParser()
	var errs *multierror.Error

	for _, file := range files {
		f, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			errs = multierror.Append(errs, fmt.Errorf("failed to parse %s: %w", file, diags))
			continue
		}
		var root fileRoot
		if diags := gohcl.DecodeBody(f.Body, nil, &root); diags.HasErrors() {
			errs = multierror.Append(errs, fmt.Errorf("failed to decode %s: %w", file, diags))
			continue
		}
		if attrs, _ := root.Remain.JustAttributes(); len(attrs) > 0 {
			for name := range attrs {
				errs = multierror.Append(errs, fmt.Errorf("%s: unexpected top-level attribute %q", file, name))
			}
		}

		for _, b := range root.Data {
			d, err := translateData(b)
			if err == nil {
				err = claim(model, d.Name)
			}
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", file, err))
				continue
			}
			model.Data[d.Name] = d
		}
		for _, b := range root.Variables {
			v, err := translateVariable(ctx, b)
			if err == nil {
				err = claim(model, v.Name)
			}
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", file, err))
				continue
			}
			model.Variables[v.Name] = v
		}
		for _, b := range root.Proxies {
			p, err := translateProxy(b)
			if err == nil {
				err = claim(model, p.Name)
			}
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", file, err))
				continue
			}
			model.Proxies[p.Name] = p
		}
		for _, b := range root.Envs {
			e := translateEnv(b)
			if err := claim(model, e.Name); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", file, err))
				continue
			}
			model.Envs[e.Name] = e
		}
		for _, b := range root.Fetches {
			f, err := translateFetch(b)
			if err == nil {
				err = claim(model, f.Name)
			}
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", file, err))
				continue
			}
			model.Fetches[f.Name] = f
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	logger.Debug("HCL loading complete.", "data", len(model.Data), "variables", len(model.Variables), "proxies", len(model.Proxies), "envs", len(model.Envs), "fetches", len(model.Fetches))
	return model, nil
}

func claim(m *config.Model, name string) error {
	if m.Has(name) {
		return fmt.Errorf("branch %q is defined more than once", name)
	}
	return nil
}

// findHCLFiles walks all given paths and returns every .hcl file found once.
func findHCLFiles(paths []string) ([]string, error) {
	var all []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			all = append(all, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}
		if !info.IsDir() {
			if filepath.Ext(path) == ".hcl" {
				add(path)
			}
			continue
		}
		err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(p) == ".hcl" {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return all, nil
}
