package writer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	appconfig "derivflow/config"
	"derivflow/logger"
	"derivflow/models"
)

// Publisher writes the finished document to its published path. The
// write goes through a temp file and a rename so readers of the path
// never observe a partial document, and a document carrying fewer
// items than the configured minimum never replaces the last good one.
type Publisher struct {
	path     string
	minItems int
	log      *logger.Log
}

func NewPublisher(cfg *appconfig.Config) *Publisher {
	return &Publisher{
		path:     cfg.Pipeline.OutputPath,
		minItems: cfg.Pipeline.MinItems,
		log:      logger.GetLogger(),
	}
}

func (p *Publisher) Publish(doc *models.Document) error {
	log := p.log.WithComponent("writer")

	if len(doc.Items) < p.minItems {
		log.WithFields(logger.Fields{
			"items":     len(doc.Items),
			"min_items": p.minItems,
			"path":      p.path,
		}).Warn("Too few items, keeping previous document")
		return nil
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	if dir := filepath.Dir(p.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	tmp := p.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish document: %w", err)
	}

	logger.IncrementPublish(len(data))
	log.WithFields(logger.Fields{
		"path":  p.path,
		"items": len(doc.Items),
		"bytes": len(data),
	}).Info("Document published")
	return nil
}
