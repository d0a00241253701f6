/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package genai

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/logger"
	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/profiler"
)

// ColumnDescriber fills suite column descriptions with model-generated text.
type ColumnDescriber struct {
	client           LLMClient
	table            string
	knowledgeContext string
	retry            RetryOptions
	log              *zap.SugaredLogger
}

var _ profiler.Describer = (*ColumnDescriber)(nil)

// NewColumnDescriber returns a describer for the columns of table.
// knowledgeContext may be empty.
func NewColumnDescriber(client LLMClient, table, knowledgeContext string, retry RetryOptions) *ColumnDescriber {
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	return &ColumnDescriber{
		client:           client,
		table:            table,
		knowledgeContext: knowledgeContext,
		retry:            retry,
		log:              logger.Named("genai"),
	}
}

func (d *ColumnDescriber) DescribeColumn(ctx context.Context, column string, profile profiler.ColumnProfile) (string, error) {
	summary := ProfileSummary(profile)
	return withRetry(ctx, d.retry, d.log, func(ctx context.Context) (string, error) {
		return d.client.GenerateColumnDescription(ctx, d.table, column, summary, d.knowledgeContext)
	})
}

// ProfileSummary renders the facts of a column profile for a prompt.
func ProfileSummary(p profiler.ColumnProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Inferred type: %s\n", p.InferredType)
	fmt.Fprintf(&b, "Cardinality: %s (%d distinct values)\n", p.Cardinality, p.DistinctCount)
	fmt.Fprintf(&b, "Null values: %d\n", p.NullCount)
	if len(p.SemanticTypes) > 0 {
		names := make([]string, len(p.SemanticTypes))
		for i, s := range p.SemanticTypes {
			names[i] = s.String()
		}
		fmt.Fprintf(&b, "Semantic types: %s\n", strings.Join(names, ", "))
	}
	return b.String()
}
