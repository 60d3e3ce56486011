package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"photovault/internal/database"
	"photovault/internal/logging"
	"photovault/internal/mediatypes"
	"photovault/internal/metrics"
	"photovault/internal/sidecar"
)

// PreviewResult classifies an archive's media files before a commit.
type PreviewResult struct {
	Total        int            `json:"total"`
	Matched      []string       `json:"matched"`
	FilteredOut  []string       `json:"filteredOut"`
	NoMetadata   []string       `json:"noMetadata"`
	PeopleCounts map[string]int `json:"peopleCounts"`
}

// CommitResult summarizes a finished archive import.
type CommitResult struct {
	BatchID       int64 `json:"historyId"`
	AlbumID       int64 `json:"albumId"`
	ImportedCount int   `json:"importedCount"`
	FailedCount   int   `json:"failedCount"`
	TotalCount    int   `json:"totalCount"`
}

// extractedDir is the scratch location an archive unpacks into. Preview and
// commit derive the same path so commit reuses preview's extraction.
func (im *Importer) extractedDir(identifier string) string {
	return im.cfg.Uploads.Dir(identifier) + "_extracted"
}

// PreviewArchive extracts the uploaded archive (or reuses a previous
// extraction), matches sidecars, and buckets every media file by how a
// commit with the same people filter would treat it. The extracted scratch
// directory is left in place for the commit step.
func (im *Importer) PreviewArchive(ctx context.Context, identifier string, peopleFilter []string) (*PreviewResult, error) {
	asm, ok := im.cfg.Uploads.Get(identifier)
	if !ok {
		return nil, fmt.Errorf("no assembled upload for identifier %q", identifier)
	}

	scratch := im.extractedDir(identifier)
	if _, err := im.cfg.Extractor.Extract(ctx, asm.Path, scratch); err != nil {
		return nil, fmt.Errorf("extracting %s: %w", asm.OriginalName, err)
	}
	files, err := im.cfg.Extractor.EnumerateMedia(scratch)
	if err != nil {
		return nil, fmt.Errorf("enumerating %s: %w", asm.OriginalName, err)
	}

	result := &PreviewResult{
		Total:        len(files),
		PeopleCounts: make(map[string]int),
	}
	for _, path := range files {
		rel := relName(scratch, path)
		sc, err := sidecar.Find(path, scratch)
		if err != nil {
			logging.Debug("importer: sidecar lookup for %s failed: %v", rel, err)
		}
		if sc != nil {
			for _, person := range sc.People {
				result.PeopleCounts[person]++
			}
		}

		switch {
		case sc == nil && len(peopleFilter) > 0:
			result.NoMetadata = append(result.NoMetadata, rel)
		case sc == nil:
			result.Matched = append(result.Matched, rel)
		case sc.MatchesPeople(peopleFilter):
			result.Matched = append(result.Matched, rel)
		default:
			result.FilteredOut = append(result.FilteredOut, rel)
		}
	}
	return result, nil
}

// CommitArchive runs the full import: extraction (reusing preview scratch),
// people filtering, the per-file pipeline across a bounded worker pool,
// album creation, batch history, and scratch cleanup on every path.
func (im *Importer) CommitArchive(ctx context.Context, identifier, albumTitle, albumDescription string, peopleFilter []string) (*CommitResult, error) {
	asm, ok := im.cfg.Uploads.Take(identifier)
	if !ok {
		return nil, fmt.Errorf("no assembled upload for identifier %q", identifier)
	}

	scratch := im.extractedDir(identifier)
	cleanup := func() {
		if err := os.RemoveAll(scratch); err != nil {
			logging.Warn("importer: removing extracted scratch %s: %v", scratch, err)
		}
		if err := im.cfg.Uploads.Cleanup(identifier); err != nil {
			logging.Warn("importer: scratch cleanup for %s failed: %v", identifier, err)
		}
	}

	files, err := im.prepareCommit(ctx, asm.Path, scratch, peopleFilter)
	if err != nil {
		// Environment failure before the batch exists: report, clean up.
		cleanup()
		return nil, err
	}

	batchID, err := im.cfg.DB.CreateImportBatch(ctx, asm.OriginalName, asm.Size, len(files))
	if err != nil {
		cleanup()
		return nil, err
	}

	if albumTitle == "" {
		albumTitle = trimArchiveExt(asm.OriginalName)
	}
	albumID, err := im.cfg.DB.CreateAlbum(ctx, albumTitle, albumDescription)
	if err != nil {
		im.failBatch(ctx, batchID, err)
		cleanup()
		return nil, err
	}

	result := im.runBatch(ctx, batchID, albumID, scratch, files)
	cleanup()
	return result, nil
}

// commitCandidate is one media file admitted past the people filter.
type commitCandidate struct {
	path    string
	sidecar *sidecar.Metadata
}

// prepareCommit extracts, enumerates, and applies the people filter.
func (im *Importer) prepareCommit(ctx context.Context, archivePath, scratch string, peopleFilter []string) ([]commitCandidate, error) {
	if _, err := im.cfg.Extractor.Extract(ctx, archivePath, scratch); err != nil {
		return nil, fmt.Errorf("extracting archive: %w", err)
	}
	paths, err := im.cfg.Extractor.EnumerateMedia(scratch)
	if err != nil {
		return nil, fmt.Errorf("enumerating archive: %w", err)
	}

	var files []commitCandidate
	for _, path := range paths {
		sc, err := sidecar.Find(path, scratch)
		if err != nil {
			logging.Debug("importer: sidecar lookup for %s failed: %v", path, err)
		}
		if len(peopleFilter) > 0 {
			if sc == nil || !sc.MatchesPeople(peopleFilter) {
				continue
			}
		}
		files = append(files, commitCandidate{path: path, sidecar: sc})
	}
	return files, nil
}

// runBatch drives the per-file pipeline across a bounded worker pool and
// finalizes the batch record. Per-file failures are counted, never fatal.
func (im *Importer) runBatch(ctx context.Context, batchID, albumID int64, scratch string, files []commitCandidate) *CommitResult {
	total := len(files)
	start := time.Now()
	var processed, imported, failed atomic.Int64

	im.progress.Put(batchID, Progress{Total: total, Status: string(database.BatchProcessing)})
	metrics.ImportBatchesStarted.Inc()

	update := func(current string) {
		im.progress.Put(batchID, Progress{
			Total:           total,
			Processed:       int(processed.Load()),
			Imported:        int(imported.Load()),
			Failed:          int(failed.Load()),
			CurrentFileName: current,
			Status:          string(database.BatchProcessing),
		})
	}

	jobs := make(chan commitCandidate)
	var wg sync.WaitGroup
	for i := 0; i < im.cfg.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cand := range jobs {
				name := filepath.Base(cand.path)
				update(name)

				asset, outcome, err := im.processFile(ctx, cand.path, name,
					mediatypes.GetMimeType(filepath.Ext(name)), mediatypes.MaxArchiveMemberBytes, cand.sidecar)
				switch {
				case err != nil:
					logging.Warn("importer: batch %d: %s failed: %v", batchID, name, err)
					failed.Add(1)
				case outcome == OutcomeDuplicate:
					// Duplicates count as processed, not failed.
				case outcome == OutcomeImported:
					if err := im.insertIntoAlbum(ctx, asset, albumID); err != nil {
						logging.Warn("importer: batch %d: persisting %s failed: %v", batchID, name, err)
						im.discardStored(asset)
						failed.Add(1)
					} else {
						imported.Add(1)
						metrics.AssetsIngested.WithLabelValues(string(asset.FileType)).Inc()
					}
				}
				processed.Add(1)
				update("")
			}
		}()
	}

feed:
	for _, cand := range files {
		select {
		case jobs <- cand:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	status := database.BatchCompleted
	errMsg := ""
	if err := ctx.Err(); err != nil {
		status = database.BatchFailed
		errMsg = err.Error()
	}

	if err := im.cfg.DB.RefreshAlbum(ctx, albumID); err != nil {
		logging.Warn("importer: refreshing album %d: %v", albumID, err)
	}
	if err := im.cfg.DB.CompleteImportBatch(ctx, batchID, status,
		int(imported.Load()), int(failed.Load()), &albumID, errMsg); err != nil {
		logging.Error("importer: finalizing batch %d: %v", batchID, err)
	}

	im.progress.Put(batchID, Progress{
		Total:     total,
		Processed: int(processed.Load()),
		Imported:  int(imported.Load()),
		Failed:    int(failed.Load()),
		Status:    string(status),
	})
	metrics.ImportBatchesFinished.WithLabelValues(string(status)).Inc()
	metrics.ImportDuration.Observe(time.Since(start).Seconds())

	return &CommitResult{
		BatchID:       batchID,
		AlbumID:       albumID,
		ImportedCount: int(imported.Load()),
		FailedCount:   int(failed.Load()),
		TotalCount:    total,
	}
}

func (im *Importer) insertIntoAlbum(ctx context.Context, asset *database.MediaAsset, albumID int64) error {
	id, err := im.cfg.DB.InsertAsset(ctx, asset)
	if err != nil {
		return err
	}
	return im.cfg.DB.AddAssetToAlbum(ctx, albumID, id)
}

// failBatch marks a batch failed after an environment-level error.
func (im *Importer) failBatch(ctx context.Context, batchID int64, cause error) {
	if err := im.cfg.DB.CompleteImportBatch(ctx, batchID, database.BatchFailed, 0, 0, nil, cause.Error()); err != nil {
		logging.Error("importer: marking batch %d failed: %v", batchID, err)
	}
	im.progress.Put(batchID, Progress{Status: string(database.BatchFailed)})
	metrics.ImportBatchesFinished.WithLabelValues(string(database.BatchFailed)).Inc()
}

func relName(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return rel
	}
	return filepath.Base(path)
}

func trimArchiveExt(name string) string {
	ext := filepath.Ext(name)
	if ext != "" {
		return name[:len(name)-len(ext)]
	}
	return name
}
