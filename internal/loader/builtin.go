package loader

import (
	"fmt"

	"github.com/nexobotics/nova/internal/knowledge"
)

// builtinData is the company knowledge shipped with the binary. Kept as
// plain strings so edits stay diffable.
var builtinData = []string{
	"Nexobotics specializes in AI-powered customer service automation solutions for businesses of all sizes.",
	"Our flagship product, NOVA, is an AI customer service agent that can handle customer inquiries 24/7 without human intervention.",
	"NOVA can be deployed across multiple channels including websites, mobile apps, email, and social media.",
	"Nexobotics uses advanced natural language processing to understand and respond to customer queries with human-like understanding.",
	"Businesses using Nexobotics solutions report an average of 70% reduction in customer service costs within the first six months.",
	"Our AI agents can be customized to match your brand voice and company policies, ensuring consistent customer experiences.",
	"Nexobotics offers seamless integration with popular CRM systems including Salesforce, HubSpot, and Zoho.",
	"The Nexobotics analytics dashboard provides real-time insights into customer interactions, common issues, and satisfaction metrics.",
	"Our AI technology continuously learns from interactions to improve response accuracy and customer satisfaction over time.",
	"Nexobotics solutions can handle multiple languages including English, Spanish, French, German, Japanese, and Mandarin.",
	"The average response time for queries handled by Nexobotics AI is under 2 seconds, compared to industry average wait times of 11 minutes for human agents.",
	"Nexobotics offers both fully automated solutions and hybrid models where AI handles routine queries and escalates complex issues to human agents.",
	"Our security protocols ensure all customer data is encrypted and handled in compliance with GDPR, CCPA, and other privacy regulations.",
	"Nexobotics was founded in 2020 by a team of AI researchers and customer experience professionals with a mission to transform business-customer relationships.",
	"Our subscription plans scale based on query volume, making our solutions accessible to businesses from startups to enterprise corporations.",
}

// Builtin returns the shipped company knowledge as documents. Ids are
// stable so repeated ingestion overwrites in place.
func Builtin() []knowledge.Document {
	docs := make([]knowledge.Document, 0, len(builtinData))
	for i, text := range builtinData {
		docs = append(docs, knowledge.Document{
			ID:   fmt.Sprintf("builtin:nexobotics-%02d", i+1),
			Text: text,
			Metadata: map[string]string{
				"source": "builtin",
			},
		})
	}
	return docs
}
