package catalog

import "nmafoods/api/models"

func usd(amount string) models.Money {
	return models.Money{Amount: amount, CurrencyCode: "USD"}
}

func usdPtr(amount string) *models.Money {
	m := usd(amount)
	return &m
}

func mockProducts() []models.Product {
	return []models.Product{
		{
			ID:          "mock-1",
			Title:       "Organic Turmeric Powder",
			Handle:      "organic-turmeric-powder",
			Description: "Premium organic turmeric powder sourced directly from Ghana's finest farms.",
			ProductType: "Functional Spices",
			Vendor:      "NMA Foods",
			Tags:        []string{"anti-inflammatory", "antioxidant", "organic"},
			Images: []models.Image{
				{ID: "1", URL: "/images/turmeric_1.jpeg", AltText: "Organic Turmeric Powder"},
				{ID: "2", URL: "/images/turmeric_2.jpeg", AltText: "Turmeric Powder Close-up"},
			},
			Variants: []models.Variant{{
				ID: "variant-1", Title: "Default Title", Price: usd("24.99"), CompareAtPrice: usdPtr("29.99"),
				AvailableForSale: true, QuantityAvailable: 47,
			}},
		},
		{
			ID:          "mock-2",
			Title:       "Jollof Spice Blend",
			Handle:      "jollof-spice-blend",
			Description: "Authentic West African Jollof rice seasoning blend, trusted by generations.",
			ProductType: "Authentic Blends",
			Vendor:      "NMA Foods",
			Tags:        []string{"traditional", "authentic", "blend"},
			Images: []models.Image{
				{ID: "3", URL: "/images/spice_blends_1.jpeg", AltText: "Jollof Spice Blend"},
			},
			Variants: []models.Variant{{
				ID: "variant-2", Title: "Default Title", Price: usd("19.99"), CompareAtPrice: usdPtr("24.99"),
				AvailableForSale: true, QuantityAvailable: 32,
			}},
		},
		{
			ID:          "mock-3",
			Title:       "Premium Ginger Flakes",
			Handle:      "premium-ginger-flakes",
			Description: "Dried ginger flakes perfect for teas, cooking, and natural wellness remedies.",
			ProductType: "Functional Spices",
			Vendor:      "NMA Foods",
			Tags:        []string{"digestive-health", "natural", "organic"},
			Images: []models.Image{
				{ID: "4", URL: "/images/ginger_2.jpeg", AltText: "Premium Ginger Flakes"},
			},
			Variants: []models.Variant{{
				ID: "variant-3", Title: "Default Title", Price: usd("22.99"), CompareAtPrice: usdPtr("27.99"),
				AvailableForSale: true, QuantityAvailable: 28,
			}},
		},
	}
}

func mockCollections() []models.Collection {
	p := mockProducts()
	return []models.Collection{
		{
			ID:          "collection-1",
			Title:       "Functional Spices",
			Handle:      "functional",
			Description: "Premium spices with proven health benefits",
			Image:       &models.Image{ID: "1", URL: "/images/turmeric_1.jpeg", AltText: "Functional Spices"},
			Products:    []models.Product{p[0], p[2]},
		},
		{
			ID:          "collection-2",
			Title:       "Authentic Blends",
			Handle:      "authentic",
			Description: "Traditional West African and Caribbean flavors",
			Image:       &models.Image{ID: "2", URL: "/images/spice_blends_1.jpeg", AltText: "Authentic Blends"},
			Products:    []models.Product{p[1]},
		},
		{
			ID:          "collection-3",
			Title:       "Essential Staples",
			Handle:      "staples",
			Description: "Premium quality everyday spices",
			Image:       &models.Image{ID: "3", URL: "/images/spice_jars_1.jpeg", AltText: "Essential Staples"},
			Products:    []models.Product{},
		},
	}
}
