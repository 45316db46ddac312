package rag

import "github.com/nexobotics/nova/internal/knowledge"

// BootstrapDocuments returns the small fixed document set used to seed a
// freshly created collection, so the assistant can answer basic questions
// about Nexobotics before any real ingestion has run.
//
// Ids are stable: reseeding (or a later ingestion run reusing an id)
// overwrites rather than duplicates.
func BootstrapDocuments() []knowledge.Document {
	return []knowledge.Document{
		{
			ID:   "bootstrap-company",
			Text: "Nexobotics helps businesses improve customer service with AI.",
			Metadata: map[string]string{
				"source":   "bootstrap",
				"category": "company",
			},
		},
		{
			ID:   "bootstrap-satisfaction",
			Text: "Customer satisfaction is critical for business success.",
			Metadata: map[string]string{
				"source":   "bootstrap",
				"category": "customer-service",
			},
		},
		{
			ID:   "bootstrap-chatbots",
			Text: "AI chatbots can handle routine customer inquiries efficiently.",
			Metadata: map[string]string{
				"source":   "bootstrap",
				"category": "customer-service",
			},
		},
	}
}
