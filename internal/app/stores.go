package app

import (
	"database/sql"
	"fmt"
	"log"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	mappingcache "github.com/brifyai/pptx/internal/cache/mapping"
	"github.com/brifyai/pptx/internal/config"
	"github.com/brifyai/pptx/internal/repository/document"
	mappingrepo "github.com/brifyai/pptx/internal/repository/mapping"
)

type stores struct {
	mappings  mappingrepo.Store
	documents document.Store
	db        *sql.DB
}

func initStores(cfg *config.Config) (*stores, error) {
	origin, db, err := chooseMappingOrigin(cfg)
	if err != nil {
		return nil, err
	}
	docs, err := chooseDocumentStore(cfg)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, err
	}
	return &stores{
		mappings: mappingcache.NewCachedStore(origin, mappingcache.CacheConfig{
			TTL:        cfg.Mapping.CacheTTL,
			MaxEntries: cfg.Mapping.CacheEntries,
		}),
		documents: docs,
		db:        db,
	}, nil
}

func chooseMappingOrigin(cfg *config.Config) (mappingrepo.Store, *sql.DB, error) {
	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open db: %w", err)
		}
		log.Printf("mapping store: postgres")
		return mappingrepo.NewPostgresStore(db), db, nil
	}
	if dir := strings.TrimSpace(cfg.Mapping.Dir); dir != "" {
		fs, err := mappingrepo.NewFileStore(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize mapping file store: %w", err)
		}
		log.Printf("mapping store: file dir=%s", dir)
		return fs, nil, nil
	}
	log.Printf("mapping store: in-memory")
	return mappingrepo.NewMemoryStore(), nil, nil
}

func chooseDocumentStore(cfg *config.Config) (document.Store, error) {
	if cfg.Document.CanUseS3() {
		s3Cfg := document.S3Config{
			Endpoint:  cfg.Document.Endpoint,
			Region:    cfg.Document.Region,
			AccessKey: cfg.Document.AccessKey,
			SecretKey: cfg.Document.SecretKey,
			Bucket:    cfg.Document.Bucket,
			UseSSL:    cfg.Document.UseSSL,
		}
		s3Store, err := document.NewS3Store(s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize document s3 store: %w", err)
		}
		log.Printf("document store: s3 bucket=%s endpoint=%s", s3Cfg.Bucket, s3Cfg.Endpoint)
		return s3Store, nil
	}
	if cfg.Document.Endpoint != "" {
		log.Printf("document store: using disk fallback (s3 config incomplete)")
	}
	disk, err := document.NewDiskStore(cfg.Document.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize document disk store: %w", err)
	}
	log.Printf("document store: disk dir=%s", cfg.Document.Dir)
	return disk, nil
}
