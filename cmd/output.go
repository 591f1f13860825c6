package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/TylerBrock/colorjson"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var (
	okColor      = color.New(color.FgGreen, color.Bold)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
	colorEnabled bool
)

// initColor enables colors when NO_COLOR is unset and w is a terminal.
func initColor(w io.Writer) {
	colorEnabled = false
	if os.Getenv("NO_COLOR") == "" {
		if f, ok := w.(*os.File); ok {
			colorEnabled = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		}
	}
	color.NoColor = !colorEnabled
}

// printJSON writes v indented, colorized when colors are on.
func printJSON(w io.Writer, v interface{}) error {
	if !colorEnabled {
		indented, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(indented))
		return err
	}

	// colorjson only walks generic maps and slices
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var obj interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return err
	}

	f := colorjson.NewFormatter()
	f.Indent = 2
	s, err := f.Marshal(obj)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(s))
	return err
}
