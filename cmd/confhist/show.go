package main

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newShowCmd() *cobra.Command {
	var outputType string

	cmd := &cobra.Command{
		Use:   "show <entity> <timestamp>",
		Short: "Print a recorded snapshot",
		Long:  "Prints the configuration recorded at timestamp. With --type xml, well-formed XML is re-indented.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, args[0], args[1], outputType)
		},
	}

	cmd.Flags().StringVarP(&outputType, "type", "t", "plain", "Output type (xml, plain)")

	return cmd
}

func runShow(cmd *cobra.Command, entityID, timestamp, outputType string) error {
	if !contains(validShowTypes, outputType) {
		return fmt.Errorf("invalid type %q, valid types: %v", outputType, validShowTypes)
	}

	ctx := cmd.Context()

	return withDeps(ctx, cmd.ErrOrStderr(), func(deps *Deps) error {
		snap, err := deps.History.HandleShow(ctx, entityID, timestamp)
		if err != nil {
			return err
		}

		content := snap.Content
		if outputType == "xml" {
			pretty, err := prettyXML(content)
			if err != nil {
				deps.Logger.Warn().Err(err).Msg("snapshot is not well-formed XML, printing verbatim")
			} else {
				content = pretty
			}
		}

		_, err = io.WriteString(cmd.OutOrStdout(), content)
		return err
	})
}

// prettyXML re-indents a well-formed XML document with two spaces.
// Whitespace-only text between elements is dropped.
func prettyXML(content string) (string, error) {
	if err := checkWellFormed(content); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	decl, body := splitDeclaration(content)
	if decl != "" {
		buf.WriteString(decl)
		buf.WriteByte('\n')
	}

	dec := xml.NewDecoder(strings.NewReader(body))
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	inProlog := true
	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.CharData:
			trimmed := bytes.TrimSpace(t)
			if len(trimmed) == 0 {
				continue
			}
			tok = xml.CharData(trimmed)
		case xml.ProcInst, xml.Directive, xml.Comment:
			if inProlog {
				// The encoder does not indent these; keep each on its own line.
				buf.WriteString(rawProlog(t))
				buf.WriteByte('\n')
				continue
			}
		case xml.StartElement:
			inProlog = false
			tok = flattenStart(t)
		case xml.EndElement:
			tok = xml.EndElement{Name: flattenName(t.Name)}
		}

		if err := enc.EncodeToken(xml.CopyToken(tok)); err != nil {
			return "", err
		}
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	buf.WriteByte('\n')
	return buf.String(), nil
}

// splitDeclaration cuts a leading <?xml ...?> declaration off content.
// encoding/xml only accepts version 1.0, and Jenkins writes 1.1.
func splitDeclaration(content string) (decl, body string) {
	if !strings.HasPrefix(content, "<?xml") || len(content) < 6 || !isXMLSpace(content[5]) {
		return "", content
	}
	end := strings.Index(content, "?>")
	if end < 0 {
		return "", content
	}
	return content[:end+2], content[end+2:]
}

func isXMLSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func checkWellFormed(content string) error {
	_, body := splitDeclaration(content)
	dec := xml.NewDecoder(strings.NewReader(body))
	sawElement := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if _, ok := tok.(xml.StartElement); ok {
			sawElement = true
		}
	}
	if !sawElement {
		return errors.New("no root element")
	}
	return nil
}

func rawProlog(tok xml.Token) string {
	switch t := tok.(type) {
	case xml.ProcInst:
		return "<?" + t.Target + " " + string(t.Inst) + "?>"
	case xml.Directive:
		return "<!" + string(t) + ">"
	case xml.Comment:
		return "<!--" + string(t) + "-->"
	}
	return ""
}

// flattenName keeps a raw "prefix:local" name literal so the encoder does not
// invent namespace declarations for it.
func flattenName(n xml.Name) xml.Name {
	if n.Space == "" {
		return n
	}
	return xml.Name{Local: n.Space + ":" + n.Local}
}

func flattenStart(t xml.StartElement) xml.StartElement {
	out := xml.StartElement{Name: flattenName(t.Name)}
	for _, attr := range t.Attr {
		out.Attr = append(out.Attr, xml.Attr{Name: flattenName(attr.Name), Value: attr.Value})
	}
	return out
}
