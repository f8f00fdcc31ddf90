package hcl

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/lazygraph/internal/config"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

type dataBlock struct {
	Name  string    `hcl:"name,label"`
	Value cty.Value `hcl:"value"`
}

type variableBlock struct {
	Name    string         `hcl:"name,label"`
	Type    hcl.Expression `hcl:"type,optional"`
	Default cty.Value      `hcl:"default,optional"`
}

type proxyBlock struct {
	Name               string `hcl:"name,label"`
	URL                string `hcl:"url"`
	Transport          string `hcl:"transport,optional"`
	Namespace          string `hcl:"namespace,optional"`
	InsecureSkipVerify bool   `hcl:"insecure_skip_verify,optional"`
	Retries            int    `hcl:"retries,optional"`
	RetryDelay         string `hcl:"retry_delay,optional"`
	Timeout            string `hcl:"timeout,optional"`
	Batch              bool   `hcl:"batch,optional"`
	Log                bool   `hcl:"log,optional"`
}

type envBlock struct {
	Name   string `hcl:"name,label"`
	Prefix string `hcl:"prefix,optional"`
}

type fetchBlock struct {
	Name     string            `hcl:"name,label"`
	URL      string            `hcl:"url"`
	Method   string            `hcl:"method,optional"`
	Headers  map[string]string `hcl:"headers,optional"`
	Interval string            `hcl:"interval,optional"`
}

// DefaultRetryDelay is the delay between retries of a proxy that sets
// retries but no retry_delay.
const DefaultRetryDelay = 100 * time.Millisecond

func translateData(b *dataBlock) (*config.Data, error) {
	v, err := toGo(b.Value)
	if err != nil {
		return nil, fmt.Errorf("data %q: %w", b.Name, err)
	}
	return &config.Data{Name: b.Name, Value: v}, nil
}

func translateVariable(ctx context.Context, b *variableBlock) (*config.Variable, error) {
	ty, err := variableType(ctx, b.Type)
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", b.Name, err)
	}
	def := b.Default
	if !unset(def) && ty != cty.DynamicPseudoType {
		def, err = convert.Convert(def, ty)
		if err != nil {
			return nil, fmt.Errorf("variable %q: default does not match type %s: %w", b.Name, ty.FriendlyName(), err)
		}
	}
	v, err := toGo(def)
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", b.Name, err)
	}
	return &config.Variable{Name: b.Name, Default: v}, nil
}

func translateProxy(b *proxyBlock) (*config.Proxy, error) {
	p := &config.Proxy{
		Name:               b.Name,
		URL:                b.URL,
		Transport:          b.Transport,
		Namespace:          b.Namespace,
		InsecureSkipVerify: b.InsecureSkipVerify,
		Retries:            b.Retries,
		Batch:              b.Batch,
		Log:                b.Log,
	}
	if p.Transport == "" {
		p.Transport = config.TransportHTTP
	}
	var err error
	if p.RetryDelay, err = parseDuration(b.RetryDelay, DefaultRetryDelay); err != nil {
		return nil, fmt.Errorf("proxy %q: retry_delay: %w", b.Name, err)
	}
	if p.Timeout, err = parseDuration(b.Timeout, 0); err != nil {
		return nil, fmt.Errorf("proxy %q: timeout: %w", b.Name, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func translateEnv(b *envBlock) *config.Env {
	return &config.Env{Name: b.Name, Prefix: b.Prefix}
}

func translateFetch(b *fetchBlock) (*config.Fetch, error) {
	f := &config.Fetch{
		Name:    b.Name,
		URL:     b.URL,
		Method:  strings.ToUpper(b.Method),
		Headers: b.Headers,
	}
	if f.Method == "" {
		f.Method = http.MethodGet
	}
	var err error
	if f.Interval, err = parseDuration(b.Interval, 0); err != nil {
		return nil, fmt.Errorf("fetch %q: interval: %w", b.Name, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %s is negative", s)
	}
	return d, nil
}
