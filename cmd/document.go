package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docrouter/internal/model"
	"github.com/sells-group/docrouter/internal/processor"
	"github.com/sells-group/docrouter/internal/resilience"
	"github.com/sells-group/docrouter/internal/router"
	"github.com/sells-group/docrouter/pkg/docintel"
)

// layoutModel is the prebuilt model used to build a snapshot from a URL.
const layoutModel = "prebuilt-layout"

// documentFile is the on-disk form of a routing request. A file holding a
// bare extraction snapshot is also accepted.
type documentFile struct {
	DocumentID string                    `json:"document_id"`
	Snapshot   *model.ExtractionSnapshot `json:"snapshot"`
	Metadata   model.DocumentMetadata    `json:"metadata"`
	ForceMode  string                    `json:"force_mode"`
}

// loadDocument reads a routing request from path. The document ID defaults
// to the file name without extension.
func loadDocument(path string) (router.RouteRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return router.RouteRequest{}, eris.Wrapf(err, "read %s", path)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return router.RouteRequest{}, eris.Wrapf(err, "parse %s", path)
	}

	var doc documentFile
	_, hasSnap := probe["snapshot"]
	_, hasMeta := probe["metadata"]
	_, hasID := probe["document_id"]
	if hasSnap || hasMeta || hasID {
		if err := json.Unmarshal(data, &doc); err != nil {
			return router.RouteRequest{}, eris.Wrapf(err, "parse %s", path)
		}
	} else {
		doc.Snapshot = &model.ExtractionSnapshot{}
		if err := json.Unmarshal(data, doc.Snapshot); err != nil {
			return router.RouteRequest{}, eris.Wrapf(err, "parse snapshot %s", path)
		}
	}

	if doc.DocumentID == "" {
		doc.DocumentID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return router.RouteRequest{
		DocumentID: doc.DocumentID,
		Snapshot:   doc.Snapshot,
		Metadata:   doc.Metadata,
		ForceMode:  doc.ForceMode,
	}, nil
}

// listDocuments returns the sorted JSON files directly under dir.
func listDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "read dir %s", dir)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// parseMetadata turns key=value flags into document metadata.
func parseMetadata(pairs []string) (model.DocumentMetadata, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(model.DocumentMetadata, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, eris.Errorf("invalid metadata %q: want key=value", p)
		}
		meta[k] = strings.TrimSpace(v)
	}
	return meta, nil
}

// snapshotFromURL runs the layout model over the document at url.
func snapshotFromURL(ctx context.Context, client docintel.Client, guard *resilience.Guard, url string) (*model.ExtractionSnapshot, error) {
	res, err := resilience.Call(ctx, guard, "docintel", "layout", func(ctx context.Context) (*docintel.AnalyzeResult, error) {
		return client.Analyze(ctx, docintel.AnalyzeRequest{ModelID: layoutModel, URLSource: url})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "layout analysis of %s", url)
	}
	return processor.SnapshotFromResult(res), nil
}
