package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/WessleyAI/hybrid-rag/engine/domain"
	"github.com/WessleyAI/hybrid-rag/pkg/fn"
)

var queryCmd = &cobra.Command{
	Use:   "query [question...]",
	Short: "Answer one or more questions",
	Long: `Query answers each question given as an argument or listed in --file.
A .yaml or .yml file holds a list of questions (or a "questions" key); any
other file has one question per line, with blank lines and # comments
ignored. With neither, questions are read from stdin one per line until
EOF, which keeps the process alive for --metrics-addr scraping.

Each response is written to stdout as one JSON document.`,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().String("file", "", "read questions from this file")
	queryCmd.Flags().Int("workers", 4, "questions answered concurrently from args or --file")
	queryCmd.Flags().Bool("pretty", false, "indent JSON output")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(viper.GetViper())
	if err != nil {
		return err
	}
	logger, err := newLogger(os.Stderr, s.LogFormat, s.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rec, metricsSrv, err := newRecorder(s.MetricsAddr, logger)
	if err != nil {
		return err
	}
	if metricsSrv != nil {
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metricsSrv.Shutdown(shutCtx)
		}()
	}

	a, err := build(ctx, s, rec, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	file, _ := cmd.Flags().GetString("file")
	workers, _ := cmd.Flags().GetInt("workers")
	pretty, _ := cmd.Flags().GetBool("pretty")
	out := newPrinter(cmd.OutOrStdout(), pretty)

	questions := args
	if file != "" {
		fromFile, err := readQuestionsFile(file)
		if err != nil {
			return err
		}
		questions = append(questions, fromFile...)
	}
	if len(questions) == 0 {
		return streamQuestions(ctx, cmd.InOrStdin(), func(q string) error {
			return out.print(a.engine.Search(ctx, q))
		})
	}

	responses := fn.ParMap(questions, workers, func(q string) *domain.SearchResponse {
		return a.engine.Search(ctx, q)
	})
	for _, resp := range responses {
		if err := out.print(resp); err != nil {
			return err
		}
	}
	return nil
}

type printer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newPrinter(w io.Writer, pretty bool) *printer {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return &printer{enc: enc}
}

func (p *printer) print(resp *domain.SearchResponse) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enc.Encode(resp)
}

func readQuestionsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return readQuestionsYAML(f)
	}
	var out []string
	err = scanQuestions(f, func(q string) error {
		out = append(out, q)
		return nil
	})
	return out, err
}

func readQuestionsYAML(r io.Reader) ([]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var list []string
	if err := yaml.Unmarshal(raw, &list); err == nil {
		return nonBlank(list), nil
	}
	var doc struct {
		Questions []string `yaml:"questions"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}
	return nonBlank(doc.Questions), nil
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, q := range in {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}

func scanQuestions(r io.Reader, each func(string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := each(line); err != nil {
			return err
		}
	}
	return sc.Err()
}

// streamQuestions answers stdin questions in order until EOF or ctx is done.
func streamQuestions(ctx context.Context, r io.Reader, each func(string) error) error {
	return scanQuestions(r, func(q string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return each(q)
	})
}
