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
package profiler

import (
	"strings"
)

// Cardinality is the bucket a column falls into based on how many distinct
// values it holds relative to its non-null row count. Buckets are ordered.
type Cardinality int

const (
	CardinalityInvalid Cardinality = iota
	CardinalityNone
	CardinalityOne
	CardinalityTwo
	CardinalityVeryFew
	CardinalityFew
	CardinalityMany
	CardinalityVeryMany
	CardinalityUnique
)

var cardinalityNames = map[Cardinality]string{
	CardinalityNone:     "NONE",
	CardinalityOne:      "ONE",
	CardinalityTwo:      "TWO",
	CardinalityVeryFew:  "VERY_FEW",
	CardinalityFew:      "FEW",
	CardinalityMany:     "MANY",
	CardinalityVeryMany: "VERY_MANY",
	CardinalityUnique:   "UNIQUE",
}

// Cardinalities lists every valid bucket in ascending order.
func Cardinalities() []Cardinality {
	return []Cardinality{
		CardinalityNone, CardinalityOne, CardinalityTwo, CardinalityVeryFew,
		CardinalityFew, CardinalityMany, CardinalityVeryMany, CardinalityUnique,
	}
}

func (c Cardinality) String() string {
	if name, ok := cardinalityNames[c]; ok {
		return name
	}
	return "INVALID"
}

func (c Cardinality) IsValid() bool {
	return c >= CardinalityNone && c <= CardinalityUnique
}

// AtMost reports whether c is the same bucket as other or a lower one.
func (c Cardinality) AtMost(other Cardinality) bool {
	return c <= other
}

// ParseCardinality accepts bucket names in any case, e.g. "few" or "VERY_MANY".
func ParseCardinality(s string) (Cardinality, bool) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for c, n := range cardinalityNames {
		if n == name {
			return c, true
		}
	}
	return CardinalityInvalid, false
}

// InferredType is the base type of a column as reported by the data source.
type InferredType int

const (
	TypeInvalid InferredType = iota
	TypeInt
	TypeFloat
	TypeNumeric
	TypeString
	TypeBoolean
	TypeDatetime
	TypeOther
)

var inferredTypeNames = map[InferredType]string{
	TypeInt:      "INT",
	TypeFloat:    "FLOAT",
	TypeNumeric:  "NUMERIC",
	TypeString:   "STRING",
	TypeBoolean:  "BOOLEAN",
	TypeDatetime: "DATETIME",
	TypeOther:    "OTHER",
}

func (t InferredType) String() string {
	if name, ok := inferredTypeNames[t]; ok {
		return name
	}
	return "INVALID"
}

// IsNumeric is true for INT, FLOAT and NUMERIC.
func (t InferredType) IsNumeric() bool {
	return t == TypeInt || t == TypeFloat || t == TypeNumeric
}

var (
	intTypeNames = []string{
		"INTEGER", "int", "INT", "TINYINT", "SMALLINT", "BIGINT",
		"int8", "int16", "int32", "int64", "uint8", "uint16", "uint32", "uint64",
		"IntegerType", "LongType",
	}
	floatTypeNames = []string{
		"FLOAT", "FLOAT4", "FLOAT8", "REAL", "DOUBLE", "DOUBLE_PRECISION",
		"float", "float16", "float32", "float64", "FloatType", "DoubleType",
	}
	numericTypeNames = []string{"NUMERIC", "DECIMAL", "number", "DecimalType"}
	stringTypeNames  = []string{
		"CHAR", "NCHAR", "VARCHAR", "NVARCHAR", "TEXT", "NTEXT", "STRING",
		"StringType", "string", "str", "UUID",
	}
	booleanTypeNames  = []string{"BOOLEAN", "BOOL", "BIT", "boolean", "bool", "BooleanType"}
	datetimeTypeNames = []string{
		"TIMESTAMP", "TIMESTAMPTZ", "DATE", "TIME", "DATETIME", "DATETIME2",
		"DATETIMEOFFSET", "datetime64", "Timestamp", "TimestampType", "DateType",
	}
)

// TypeList returns the storage type names a column of this type may legitimately
// report. OTHER has no list.
func (t InferredType) TypeList() []string {
	var out []string
	switch t {
	case TypeInt:
		out = append(out, intTypeNames...)
	case TypeFloat:
		out = append(out, floatTypeNames...)
	case TypeNumeric:
		out = append(out, intTypeNames...)
		out = append(out, floatTypeNames...)
		out = append(out, numericTypeNames...)
	case TypeString:
		out = append(out, stringTypeNames...)
	case TypeBoolean:
		out = append(out, booleanTypeNames...)
	case TypeDatetime:
		out = append(out, datetimeTypeNames...)
	}
	return out
}

// InferTypeFromStorage maps a storage type name such as "character varying(20)",
// "BIGINT" or "timestamp with time zone" onto an InferredType.
func InferTypeFromStorage(dataType string) InferredType {
	t := strings.ToLower(strings.TrimSpace(dataType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	if t == "" {
		return TypeOther
	}

	switch t {
	case "int", "integer", "tinyint", "smallint", "mediumint", "bigint",
		"int2", "int4", "int8", "serial", "bigserial", "smallserial":
		return TypeInt
	case "float", "float4", "float8", "real", "double", "double precision":
		return TypeFloat
	case "numeric", "decimal", "number", "money", "smallmoney":
		return TypeNumeric
	case "bool", "boolean", "bit":
		return TypeBoolean
	case "date", "time", "datetime", "datetime2", "smalldatetime", "datetimeoffset", "year":
		return TypeDatetime
	case "uuid", "uniqueidentifier":
		return TypeString
	}

	switch {
	case strings.HasPrefix(t, "timestamp"), strings.HasPrefix(t, "time "):
		return TypeDatetime
	case strings.Contains(t, "char"), strings.Contains(t, "text"), strings.HasPrefix(t, "enum"):
		return TypeString
	case strings.HasPrefix(t, "unsigned") || strings.HasSuffix(t, "unsigned"):
		base := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(t, "unsigned"), "unsigned"))
		return InferTypeFromStorage(base)
	}
	return TypeOther
}

// SemanticType is a user-declared category that drives which expectations a
// column receives.
type SemanticType int

const (
	SemanticInvalid SemanticType = iota
	SemanticDatetime
	SemanticNumeric
	SemanticString
	SemanticValueSet
	SemanticBoolean
	SemanticOther
)

var semanticTypeNames = map[SemanticType]string{
	SemanticDatetime: "DATETIME",
	SemanticNumeric:  "NUMERIC",
	SemanticString:   "STRING",
	SemanticValueSet: "VALUE_SET",
	SemanticBoolean:  "BOOLEAN",
	SemanticOther:    "OTHER",
}

// SemanticTypes lists every recognized category in declaration order.
func SemanticTypes() []SemanticType {
	return []SemanticType{
		SemanticDatetime, SemanticNumeric, SemanticString,
		SemanticValueSet, SemanticBoolean, SemanticOther,
	}
}

func semanticTypeNameList() []string {
	all := SemanticTypes()
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = s.String()
	}
	return names
}

func (s SemanticType) String() string {
	if name, ok := semanticTypeNames[s]; ok {
		return name
	}
	return "INVALID"
}

// ParseSemanticType accepts category names in any case, e.g. "value_set".
func ParseSemanticType(s string) (SemanticType, bool) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for st, n := range semanticTypeNames {
		if n == name {
			return st, true
		}
	}
	return SemanticInvalid, false
}
