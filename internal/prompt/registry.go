package prompt

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"pressdesk/internal/langfuse"
)

// TemplateExt is the extension local template files carry. The base name is
// both identity and display name; content is the verbatim system prompt.
const TemplateExt = ".md"

// Registry enumerates usable templates from the local file store and the
// remote template service and groups them by pipeline stage. Listings are
// fetched fresh on every call so remote edits show up without a restart.
type Registry struct {
	Dir    string
	Remote *langfuse.Client
}

func NewRegistry(dir string, remote *langfuse.Client) *Registry {
	return &Registry{Dir: dir, Remote: remote}
}

// ListLocal scans the template directory. An unreadable or missing
// directory yields an empty list, never an error.
func (r *Registry) ListLocal() []Info {
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		return nil
	}
	var out []Info
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), TemplateExt) {
			continue
		}
		out = append(out, Info{
			Name:        e.Name(),
			DisplayName: strings.TrimSuffix(e.Name(), TemplateExt),
			Source:      SourceLocal,
			Versions:    []string{VersionLatest},
		})
	}
	return out
}

// ListRemote queries the remote service's listing endpoint, grouping rows
// by name and merging labels with formatted numeric versions. Absent
// credentials or any remote failure degrade to an empty list.
func (r *Registry) ListRemote(ctx context.Context) []Info {
	if !r.Remote.Configured() {
		return nil
	}
	entries, err := r.Remote.ListPrompts(ctx)
	if err != nil {
		log.Printf("prompt: remote listing unavailable: %v", err)
		return nil
	}
	byName := make(map[string]map[string]struct{})
	var order []string
	for _, e := range entries {
		if e.Name == "" {
			continue
		}
		set, ok := byName[e.Name]
		if !ok {
			set = make(map[string]struct{})
			byName[e.Name] = set
			order = append(order, e.Name)
		}
		for _, l := range e.Labels {
			set[l] = struct{}{}
		}
		if e.Version > 0 {
			set[fmt.Sprintf("v%d", e.Version)] = struct{}{}
		}
	}
	out := make([]Info, 0, len(order))
	for _, name := range order {
		out = append(out, Info{
			Name:        name,
			DisplayName: name,
			Source:      SourceRemote,
			Versions:    SortVersions(keys(byName[name])),
		})
	}
	return out
}

// List returns local plus remote templates in one slice.
func (r *Registry) List(ctx context.Context) []Info {
	return append(r.ListLocal(), r.ListRemote(ctx)...)
}

// keyword sets per stage, matched case-insensitively as substrings.
var categoryKeywords = map[Category][]string{
	CategoryExtraction: {"extract"},
	CategoryConcept:    {"draft", "concept", "entwurf"},
	CategoryDraft:      {"write", "article", "artikel"},
	CategoryCheck:      {"check", "fact", "control"},
}

// Categorize partitions templates into stage buckets by name keywords.
// A name matching no keyword set is logged and assigned to no bucket.
func Categorize(all []Info) map[Category][]Info {
	out := make(map[Category][]Info, len(Categories))
	for _, c := range Categories {
		out[c] = nil
	}
	for _, p := range all {
		lower := strings.ToLower(p.Name)
		matched := false
		for _, c := range Categories {
			for _, kw := range categoryKeywords[c] {
				if strings.Contains(lower, kw) {
					out[c] = append(out[c], p)
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if !matched {
			log.Printf("prompt: uncategorized template %q (%s)", p.Name, p.Source)
		}
	}
	return out
}

// Versions reports the known version set for one template name. Local
// templates only ever have "latest"; remote names are looked up live.
func (r *Registry) Versions(ctx context.Context, name string, source Source) []string {
	if source != SourceRemote {
		return []string{VersionLatest}
	}
	for _, p := range r.ListRemote(ctx) {
		if p.Name == name {
			return p.Versions
		}
	}
	return []string{VersionLatest}
}

// priority labels sort first, in exactly this order.
var priorityLabels = []string{"production", "staging", VersionLatest}

// SortVersions orders a version set for display: known priority labels
// first in fixed order, the remainder lexicographically descending. An
// empty set defaults to ["latest"].
func SortVersions(versions []string) []string {
	if len(versions) == 0 {
		return []string{VersionLatest}
	}
	seen := make(map[string]struct{}, len(versions))
	for _, v := range versions {
		seen[v] = struct{}{}
	}
	var out []string
	for _, p := range priorityLabels {
		if _, ok := seen[p]; ok {
			out = append(out, p)
			delete(seen, p)
		}
	}
	rest := keys(seen)
	sort.Sort(sort.Reverse(sort.StringSlice(rest)))
	return append(out, rest...)
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
