package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"pressdesk/internal/artifact"
	"pressdesk/internal/attachparse"
	"pressdesk/internal/config"
	"pressdesk/internal/invoke"
	"pressdesk/internal/langfuse"
	"pressdesk/internal/llm"
	"pressdesk/internal/pipeline"
	"pressdesk/internal/prompt"
	"pressdesk/internal/runstore"
	"pressdesk/internal/scrape"
	"pressdesk/internal/trace"
)

// fileList collects repeatable -file flags.
type fileList []string

func (f *fileList) String() string     { return strings.Join(*f, ",") }
func (f *fileList) Set(v string) error { *f = append(*f, v); return nil }

func main() {
	meta := flag.String("meta", "", "sender metadata (name, date)")
	text := flag.String("text", "", "message body text")
	textFile := flag.String("text-file", "", "read message body from file")
	scrapeURL := flag.String("url", "", "presseportal.de URL to scrape as additional context")
	var files fileList
	flag.Var(&files, "file", "attachment path (PDF, DOCX or TXT); repeatable")

	extractRef := flag.String("extract", "local:extraction", "extraction prompt as source:name@version")
	conceptRef := flag.String("concept", "local:concept_draft", "concept prompt as source:name@version")
	writeRef := flag.String("write", "local:write_article", "writing prompt as source:name@version")
	checkRef := flag.String("check", "local:fact_check", "check prompt as source:name@version")
	structuredDraft := flag.Bool("structured-draft", false, "request the article draft as JSON")

	model := flag.String("model", "", "model id (default "+llm.DefaultModel+")")
	temp := flag.Float64("temp", 0.1, "sampling temperature")
	outDir := flag.String("out", "out", "output directory")
	list := flag.Bool("list", false, "list available prompts by stage and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()
	lf := langfuse.New(cfg.Langfuse.Host, cfg.Langfuse.PublicKey, cfg.Langfuse.SecretKey)

	if *list {
		listPrompts(ctx, prompt.NewRegistry(cfg.PromptDir, lf))
		return
	}
	if *textFile != "" {
		b, err := os.ReadFile(*textFile)
		if err != nil {
			log.Fatal(err)
		}
		*text = string(b)
	}
	if *text == "" && len(files) == 0 && *scrapeURL == "" {
		log.Fatal("nothing to process: provide -text, -file or -url")
	}

	body := *text
	if *scrapeURL != "" {
		release, err := scrape.New().Scrape(ctx, *scrapeURL)
		if err != nil {
			log.Fatal(err)
		}
		body = strings.TrimSpace(body + "\n\n" + release.FormatForLLM())
	}

	llmCli, err := llm.NewGeminiClient(ctx, cfg.APIKey, firstNonEmpty(*model, cfg.Model))
	if err != nil {
		log.Fatal(err)
	}
	cli := llm.Wrap(llmCli, llm.Retry(3, 0), llm.WithLogging(nil))
	defer cli.Close()

	tracer := trace.NewEmitter(lf)
	orch := &pipeline.Orchestrator{
		Resolver: prompt.NewResolver(cfg.PromptDir, lf),
		Gateway:  invoke.New(cli, tracer),
		Tracer:   tracer,
		Parser:   attachparse.New(),
	}

	attachments := make([]attachparse.Attachment, 0, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatal(err)
		}
		attachments = append(attachments, attachparse.Attachment{Name: filepath.Base(path), Data: data})
	}

	req := pipeline.Request{
		Metadata:    *meta,
		Body:        body,
		Attachments: attachments,
		Stages: pipeline.StageConfigs{
			Extract:         parseRef(*extractRef),
			Concept:         parseRef(*conceptRef),
			Write:           parseRef(*writeRef),
			Check:           parseRef(*checkRef),
			StructuredDraft: *structuredDraft,
		},
		Settings: invoke.Settings{Model: *model, Temperature: *temp},
	}

	runID := uuid.NewString()
	res, runErr := orch.Run(ctx, req)
	writeOutputs(*outDir, res)
	archive(ctx, cfg, runID, res)
	if runErr != nil {
		log.Fatalf("run %s failed: %v", runID, runErr)
	}
	log.Printf("run %s completed, outputs in %s", runID, *outDir)
}

func listPrompts(ctx context.Context, reg *prompt.Registry) {
	categorized := prompt.Categorize(reg.List(ctx))
	for _, cat := range prompt.Categories {
		fmt.Printf("%s:\n", cat)
		for _, p := range categorized[cat] {
			fmt.Printf("  %s (%s) versions: %s\n", p.DisplayName, p.Source, strings.Join(p.Versions, ", "))
		}
	}
}

// parseRef parses "source:name@version" with source and version optional:
// "extraction", "remote:extraction@production", "extraction@latest".
func parseRef(s string) prompt.Ref {
	ref := prompt.Ref{Source: prompt.SourceLocal, Version: prompt.VersionLatest}
	if i := strings.Index(s, ":"); i >= 0 {
		if src := strings.TrimSpace(s[:i]); src == string(prompt.SourceRemote) {
			ref.Source = prompt.SourceRemote
		}
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		if v := strings.TrimSpace(s[i+1:]); v != "" {
			ref.Version = v
		}
		s = s[:i]
	}
	ref.Name = strings.TrimSpace(s)
	return ref
}

func writeOutputs(dir string, res *pipeline.Result) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatal(err)
	}
	writeJSON(dir, "extraction.json", res.Extraction())
	writeJSON(dir, "concept.json", res.Concept())
	if out, ok := res.Article(); ok {
		name := "article.txt"
		if out.Structured() {
			name = "article.json"
		}
		writeFile(dir, name, out.Serialize())
	}
	writeFile(dir, "check.txt", res.CheckReport())
	writeFile(dir, "run.log", strings.Join(res.Log.Lines(), "\n")+"\n")
}

func archive(ctx context.Context, cfg *config.Config, runID string, res *pipeline.Result) {
	if cfg.RunStore.DSN != "" {
		store, err := runstore.New(cfg.RunStore.DSN)
		if err != nil {
			log.Printf("run store unavailable: %v", err)
		} else {
			defer store.Close()
			if err := store.Save(ctx, runID, res); err != nil {
				log.Printf("run store save failed: %v", err)
			}
		}
	}
	if !cfg.Artifact.Enabled {
		return
	}
	s3, err := artifact.NewS3Store(artifact.S3Config{
		Endpoint:  cfg.Artifact.Endpoint,
		Region:    cfg.Artifact.Region,
		AccessKey: cfg.Artifact.AccessKey,
		SecretKey: cfg.Artifact.SecretKey,
		Bucket:    cfg.Artifact.Bucket,
		UseSSL:    cfg.Artifact.UseSSL,
	})
	if err != nil {
		log.Printf("artifact store unavailable: %v", err)
		return
	}
	extraction, _ := json.MarshalIndent(res.Extraction(), "", "  ")
	putArtifact(ctx, s3, runID, "extraction.json", "application/json", extraction)
	if out, ok := res.Article(); ok {
		putArtifact(ctx, s3, runID, "article.txt", "text/plain", []byte(out.Serialize()))
	}
	putArtifact(ctx, s3, runID, "check.txt", "text/plain", []byte(res.CheckReport()))
}

func putArtifact(ctx context.Context, s3 *artifact.S3Store, runID, name, contentType string, data []byte) {
	if err := s3.Put(ctx, runID, name, contentType, data); err != nil {
		log.Printf("artifact upload failed: %v", err)
	}
}

func writeJSON(dir, name string, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	writeFile(dir, name, string(b))
}

func writeFile(dir, name, content string) {
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		log.Printf("write %s: %v", name, err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
