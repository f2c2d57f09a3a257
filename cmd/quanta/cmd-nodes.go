package main

import (
	"os"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List the nodes that can be created",
	Args:  cobra.NoArgs,
	RunE:  runNodes,
}

func init() {
	rootCmd.AddCommand(nodesCmd)
}

const nodesTemplate = `{{- range .Nodes }}
{{ .Title | printf "%-12s" }} {{ .Name | quote | printf "%-12s" }} {{ .Channels }} channel{{ if ne .Channels 1 }}s{{ end }}
{{- end }}
{{ repeat 40 "-" }}
{{ len .Nodes }} nodes, command queues of {{ .QueueCapacity }}
`

type nodeInfo struct {
	Name     string
	Title    string
	Channels int
}

func runNodes(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	caser := cases.Title(language.English)
	var list []nodeInfo
	for _, name := range s.registry.Names() {
		n, err := s.registry.New(name, s.host.Clock())
		if err != nil {
			return err
		}
		list = append(list, nodeInfo{Name: name, Title: caser.String(name), Channels: n.NumChannels()})
	}
	tmpl, err := template.New("nodes").Funcs(sprig.TxtFuncMap()).Parse(nodesTemplate)
	if err != nil {
		return err
	}
	return tmpl.Execute(os.Stdout, struct {
		Nodes         []nodeInfo
		QueueCapacity int
	}{list, s.cfg.QueueCapacity})
}
