// Seeds demonstration restricted zones into the database.
// Safe to run repeatedly: zones already present by name are skipped.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/skylane-uas/skylane/internal/airspace"
	"github.com/skylane-uas/skylane/internal/db"
	"github.com/skylane-uas/skylane/pkg/config"
)

var configPath = flag.String("config", "configs/config.json", "Path to configuration file")

func floatPtr(v float64) *float64 { return &v }

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.ReconnectWithRetry(cfg.Database, 5, time.Second)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := database.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	zones := []airspace.Zone{
		{
			Name:            "Main City Airport NFZ",
			Description:     "5km no-fly radius around the international airport",
			Kind:            airspace.KindCircle,
			CenterLatitude:  40.7128,
			CenterLongitude: -74.0060,
			RadiusM:         5000,
			MinAltitudeM:    floatPtr(0),
			MaxAltitudeM:    floatPtr(1000),
		},
		{
			Name:         "Government Building Restricted Area",
			Description:  "Permanent restriction over the government quarter",
			Kind:         airspace.KindRectangle,
			MinLatitude:  40.7500,
			MaxLatitude:  40.7550,
			MinLongitude: -73.9900,
			MaxLongitude: -73.9850,
			MinAltitudeM: floatPtr(0),
			MaxAltitudeM: floatPtr(300),
		},
		{
			Name:            "Stadium Event TFR",
			Description:     "Temporary flight restriction during stadium events",
			Kind:            airspace.KindCircle,
			CenterLatitude:  40.6827,
			CenterLongitude: -73.9752,
			RadiusM:         1500,
			MinAltitudeM:    floatPtr(0),
			MaxAltitudeM:    floatPtr(500),
		},
	}

	zoneRepo := db.NewZoneRepository(database)

	existing, err := zoneRepo.ListActiveZones(ctx)
	if err != nil {
		log.Fatalf("Failed to list existing zones: %v", err)
	}
	present := make(map[string]bool, len(existing))
	for _, z := range existing {
		present[z.Name] = true
	}

	seeded := 0
	for i := range zones {
		if present[zones[i].Name] {
			log.Printf("Zone %q already present, skipping", zones[i].Name)
			continue
		}
		if err := zoneRepo.Create(ctx, &zones[i], 0); err != nil {
			log.Fatalf("Failed to create zone %q: %v", zones[i].Name, err)
		}
		log.Printf("✓ Created zone %q (id %d)", zones[i].Name, zones[i].ID)
		seeded++
	}

	log.Printf("✅ Seeding complete: %d new, %d skipped", seeded, len(zones)-seeded)
}
