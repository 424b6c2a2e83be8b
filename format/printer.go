/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Package format renders probe outcomes for humans (text, simple),
machines (json, json-short) and monitoring systems (plugin line).
*/
package format

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aguacero7/rkik/probe"
	"github.com/aguacero7/rkik/stats"
)

// Format of the output
type Format string

// Supported formats
const (
	Text      Format = "text"
	JSON      Format = "json"
	JSONShort Format = "json-short"
	Simple    Format = "simple"
)

// Formats lists supported formats
var Formats = []Format{Text, JSON, JSONShort, Simple}

// ParseFormat validates format name
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format %q, use text, json, json-short or simple", s)
}

// Printer writes rendered outcomes. Every record goes out in a single Write call,
// so an interrupted run never leaves half a record behind.
type Printer struct {
	Out     io.Writer
	Format  Format
	Verbose bool
	Pretty  bool
	// Continuous makes text output compact, one line per cycle
	Continuous bool

	mu  sync.Mutex
	now func() time.Time
}

func (p *Printer) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}

func (p *Printer) write(b []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.Out.Write(b)
	return err
}

// Cycle renders outcomes of one probe or compare
func (p *Printer) Cycle(outcomes []probe.Outcome) error {
	var buf bytes.Buffer
	var err error
	switch p.Format {
	case JSON:
		err = p.renderJSON(&buf, outcomes)
	case JSONShort:
		err = p.renderJSONShort(&buf, outcomes)
	case Simple:
		renderSimple(&buf, outcomes)
	default:
		switch {
		case p.Continuous && !p.Verbose:
			renderShort(&buf, outcomes)
		case len(outcomes) == 1:
			renderProbe(&buf, outcomes[0], p.Verbose)
		default:
			renderCompare(&buf, outcomes, p.Verbose)
		}
	}
	if err != nil {
		return err
	}
	return p.write(buf.Bytes())
}

// Summary renders statistics gathered over a continuous run
func (p *Printer) Summary(tracker *stats.Tracker) error {
	var buf bytes.Buffer
	var err error
	switch p.Format {
	case JSON, JSONShort:
		err = p.renderSummaryJSON(&buf, tracker)
	default:
		err = renderSummaryTable(&buf, tracker)
	}
	if err != nil {
		return err
	}
	return p.write(buf.Bytes())
}

// Line writes a preformatted line, such as the plugin output
func (p *Printer) Line(s string) error {
	return p.write([]byte(s + "\n"))
}
