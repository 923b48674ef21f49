package main

import (
	"context"
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/krismos64/Staka-livres-sub003/internal/config"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/servicepack"
	"github.com/krismos64/Staka-livres-sub003/internal/logging"
	"github.com/krismos64/Staka-livres-sub003/internal/repository/mysql"
)

// Seeds the correction offerings. Safe to rerun: existing packs (by
// name) are left untouched.
func main() {
	configPath := flag.String("config", "", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.Init(true)
	if err != nil {
		log.Fatalf("init logging: %v", err)
	}
	defer logger.Sync()

	db, err := mysql.New(&cfg.MySQL)
	if err != nil {
		zap.L().Fatal("database unavailable", zap.Error(err))
	}
	repo := mysql.NewServicePackRepository(db)
	ctx := context.Background()

	packs := []*servicepack.ServicePack{
		{
			Name:        "Pack Correction",
			Description: "Correction orthographique, grammaticale et typographique de votre manuscrit.",
			PriceCents:  35000,
			Active:      true,
		},
		{
			Name:        "Pack Relecture Avancée",
			Description: "Correction complète avec retours sur le style et la cohérence du récit.",
			PriceCents:  48000,
			Active:      true,
		},
		{
			Name:        "Pack Édition Complète",
			Description: "Correction, mise en page et préparation du manuscrit pour la publication.",
			PriceCents:  75000,
			Active:      true,
		},
	}

	existing, err := repo.ListActive(ctx)
	if err != nil {
		zap.L().Fatal("list packs", zap.Error(err))
	}
	byName := make(map[string]bool, len(existing))
	for _, p := range existing {
		byName[p.Name] = true
	}

	created := 0
	for _, p := range packs {
		if byName[p.Name] {
			continue
		}
		if err := repo.Create(ctx, p); err != nil {
			zap.L().Fatal("create pack", zap.String("name", p.Name), zap.Error(err))
		}
		created++
	}
	zap.L().Info("seed complete", zap.Int("created", created), zap.Int("existing", len(existing)))
}
