package catalog

import "github.com/saiset-co/catalog-service/types"

// SampleProducts is the starter catalog written by Seed into an empty store.
var SampleProducts = []types.Product{
	{
		Name:            "NANUK 910 Protective Case",
		Slug:            "nanuk-910-protective-case",
		Category:        "Small Cases",
		Subcategory:     "Handheld Cases",
		Description:     "Ultra-lightweight and virtually unbreakable protective case for small equipment.",
		LongDescription: "Built with NK-7 resin for superior impact resistance while keeping a lightweight profile.",
		Images: []string{
			"/images/products/military-case-1.svg",
			"/images/products/industrial-case-1.svg",
		},
		Specifications: map[string]string{
			"External Dimensions": "35.1 x 29.5 x 15.2 cm",
			"Internal Dimensions": "30.5 x 24.1 x 11.4 cm",
			"Weight":              "1.5 kg",
			"Material":            "NK-7 Resin",
			"Protection Rating":   "IP67",
		},
		Features: []string{
			"Waterproof and dustproof (IP67)",
			"Impact resistant NK-7 resin shell",
			"Automatic pressure relief valve",
			"Stainless steel hardware",
		},
		Applications:   []string{"Photography Equipment", "Electronic Devices", "Medical Instruments"},
		Certifications: []string{"IP67 Waterproof Rating", "MIL-STD-810G"},
		Featured:       true,
		Active:         true,
		SortOrder:      1,
	},
	{
		Name:        "NANUK 920 Professional Case",
		Slug:        "nanuk-920-professional-case",
		Category:    "Medium Cases",
		Subcategory: "Professional Cases",
		Description: "Medium-sized professional case with customizable foam interior for versatile equipment protection.",
		Images:      []string{"/images/products/industrial-case-1.svg"},
		Specifications: map[string]string{
			"External Dimensions": "44.7 x 35.3 x 18.5 cm",
			"Weight":              "2.6 kg",
			"Material":            "NK-7 Resin",
			"Protection Rating":   "IP67",
		},
		Features: []string{
			"Customizable foam interior",
			"PowerClaw latching system",
			"Padlockable hasps",
		},
		Applications:   []string{"Drones", "Test Instruments"},
		Certifications: []string{"IP67 Waterproof Rating"},
		Featured:       true,
		Active:         true,
		SortOrder:      2,
	},
	{
		Name:        "WL-1200 Medical Antimicrobial Case",
		Slug:        "wl-1200-medical-antimicrobial-case",
		Category:    "medical",
		Subcategory: "Medical Cases",
		Description: "Specialized antimicrobial case designed for medical equipment with advanced sterilization features.",
		Images:      []string{"/images/products/medical-case-1.svg"},
		Specifications: map[string]string{
			"Material":          "Antimicrobial PP",
			"Protection Rating": "IP65",
			"Sterilization":     "Autoclave safe inserts",
		},
		Features: []string{
			"Antimicrobial shell",
			"Easy-clean interior",
			"Tamper-evident seals",
		},
		Applications:   []string{"Emergency Medical Kits", "Diagnostic Devices"},
		Certifications: []string{"ISO 13485"},
		Featured:       true,
		Active:         true,
		SortOrder:      3,
	},
	{
		Name:        "WL-2800 Industrial Heavy Duty Case",
		Slug:        "wl-2800-industrial-heavy-duty-case",
		Category:    "industrial",
		Subcategory: "Industrial Cases",
		Description: "Heavy-duty industrial case built for extreme environments and maximum equipment protection.",
		Images:      []string{"/images/products/industrial-case-2.svg"},
		Specifications: map[string]string{
			"Material":          "Reinforced copolymer",
			"Protection Rating": "IP68",
			"Temperature Range": "-40 C to +80 C",
		},
		Features: []string{
			"Reinforced corners",
			"Heavy-duty wheels",
			"Stackable design",
		},
		Applications:   []string{"Field Instruments", "Power Tools"},
		Certifications: []string{"IP68", "ATA 300"},
		Featured:       false,
		Active:         true,
		SortOrder:      4,
	},
	{
		Name:        "NANUK 915 Tool Case",
		Slug:        "nanuk-915-tool-case",
		Category:    "Tool Cases",
		Subcategory: "Professional Tools",
		Description: "Specialized tool case with organized compartments for professional tool storage and transport.",
		Images:      []string{"/images/products/tool-case-1.svg"},
		Specifications: map[string]string{
			"Weight":   "2.1 kg",
			"Material": "NK-7 Resin",
		},
		Features: []string{
			"Removable tool pallets",
			"Lid organizer",
		},
		Applications:   []string{"Maintenance Crews"},
		Certifications: []string{},
		Featured:       false,
		Active:         true,
		SortOrder:      5,
	},
}
