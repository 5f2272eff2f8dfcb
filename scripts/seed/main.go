// Command seed loads demo tours, a month of departures and the SUMMER10
// voucher into the configured store.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"tourbook/config"
	"tourbook/database"
	"tourbook/models"
	"tourbook/services/voucher"
	"tourbook/utils"

	"github.com/google/uuid"
)

func main() {
	days := flag.Int("days", 30, "number of departure dates to open, starting today")
	slots := flag.Int("slots", 20, "seats per departure")
	flag.Parse()

	config.LoadConfig()
	logger := utils.GetLogger()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := database.OpenStore(ctx)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer database.Close(context.Background())

	now := time.Now()
	today := now.Format("2006-01-02")
	tours := []models.Product{
		{
			ID: "tour-x", Kind: models.ProductTour, Name: "Ha Long Bay Cruise", Days: 3, Nights: 2,
			Prices:    []models.PriceEntry{{EffectiveFrom: today, UnitPrice: 1_000_000}},
			CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "tour-y", Kind: models.ProductTour, Name: "Hoi An Day Trip", Days: 1,
			BasePrice: 350_000,
			CreatedAt: now, UpdatedAt: now,
		},
	}
	for i := range tours {
		if err := store.SaveProduct(ctx, &tours[i]); err != nil {
			log.Fatalf("Failed to save product %s: %v", tours[i].ID, err)
		}

		// Open departures for the next N days.
		for d := 0; d < *days; d++ {
			a := &models.Availability{
				ID:             uuid.New().String(),
				Product:        tours[i].Ref(),
				Date:           now.AddDate(0, 0, d).Format("2006-01-02"),
				MaxSlots:       *slots,
				AvailableSlots: *slots,
				IsActive:       true,
				UpdatedAt:      now,
			}
			if err := store.SaveAvailability(ctx, a); err != nil {
				log.Fatalf("Failed to save availability %s %s: %v", a.Product, a.Date, err)
			}
		}
	}

	pct := 10.0
	limit := 100
	summer := &models.Voucher{
		Code:               "SUMMER10",
		DiscountPercentage: &pct,
		StartDate:          now.AddDate(0, 0, -1),
		EndDate:            now.AddDate(0, 3, 0),
		UsageLimit:         &limit,
		ApplicableProducts: []models.ProductRef{tours[0].Ref()},
	}
	evaluator := &voucher.DefaultEvaluator{Logger: logger}
	if err := evaluator.Create(ctx, store, summer); err != nil {
		if models.KindOf(err) != models.KindInputValidation {
			log.Fatalf("Failed to create voucher: %v", err)
		}
		// already seeded
		log.Printf("Voucher SUMMER10 not created: %v", err)
	}

	log.Printf("Seeded %d tours with %d departures each", len(tours), *days)
}
