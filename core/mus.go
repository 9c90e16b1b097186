// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// Hand-written MUS serializers for the types that cross the storage
// boundary. Field order is the wire format; never reorder fields here
// without a key-space migration.

// FingerprintMUS serializes a Fingerprint.
var FingerprintMUS = fingerprintMUS{}

type fingerprintMUS struct{}

func (fingerprintMUS) Marshal(f Fingerprint, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(f), bs)
}

func (fingerprintMUS) Unmarshal(bs []byte) (f Fingerprint, n int, err error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return Fingerprint(v), n, err
}

func (fingerprintMUS) Size(f Fingerprint) int {
	return varint.Uint64.Size(uint64(f))
}

// stringsMUS serializes a []string as a varint count followed by the
// elements.
type stringsMUS struct{}

func (stringsMUS) Marshal(v []string, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, s := range v {
		n += ord.String.Marshal(s, bs[n:])
	}
	return n
}

func (stringsMUS) Unmarshal(bs []byte) (v []string, n int, err error) {
	count, n, err := varint.Int.Unmarshal(bs)
	if err != nil || count == 0 {
		return nil, n, err
	}
	v = make([]string, count)
	for i := 0; i < count; i++ {
		var n1 int
		v[i], n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
	}
	return v, n, nil
}

func (stringsMUS) Size(v []string) (size int) {
	size = varint.Int.Size(len(v))
	for _, s := range v {
		size += ord.String.Size(s)
	}
	return size
}

var stringsSer = stringsMUS{}

// timeMUS serializes a time.Time as UnixNano. The zero time maps to
// nanosecond zero and back.
type timeMUS struct{}

func (timeMUS) Marshal(t time.Time, bs []byte) (n int) {
	var nanos int64
	if !t.IsZero() {
		nanos = t.UnixNano()
	}
	return varint.Int64.Marshal(nanos, bs)
}

func (timeMUS) Unmarshal(bs []byte) (t time.Time, n int, err error) {
	nanos, n, err := varint.Int64.Unmarshal(bs)
	if err != nil || nanos == 0 {
		return time.Time{}, n, err
	}
	return time.Unix(0, nanos).UTC(), n, nil
}

func (timeMUS) Size(t time.Time) int {
	var nanos int64
	if !t.IsZero() {
		nanos = t.UnixNano()
	}
	return varint.Int64.Size(nanos)
}

var timeSer = timeMUS{}

// ChunkMUS serializes a Chunk. The Embedding field stays out of the
// envelope; vectors are recomputed on demand, never persisted.
var ChunkMUS = chunkMUS{}

type chunkMUS struct{}

func (chunkMUS) Marshal(c Chunk, bs []byte) (n int) {
	n = ord.String.Marshal(c.ID, bs)
	n += ord.String.Marshal(c.DocumentID, bs[n:])
	n += varint.Int.Marshal(c.Index, bs[n:])
	n += varint.Int.Marshal(c.Total, bs[n:])
	n += ord.String.Marshal(c.Content, bs[n:])
	n += varint.Int.Marshal(c.Overlap, bs[n:])
	n += varint.Int.Marshal(int(c.Kind), bs[n:])
	n += ord.String.Marshal(c.Language, bs[n:])
	n += stringsSer.Marshal(c.SectionPath, bs[n:])
	n += varint.Int.Marshal(c.SectionLevel, bs[n:])
	n += varint.Int.Marshal(c.Range.Start, bs[n:])
	n += varint.Int.Marshal(c.Range.End, bs[n:])
	n += stringsSer.Marshal(c.Concepts, bs[n:])
	n += stringsSer.Marshal(c.Keywords, bs[n:])
	n += raw.Float64.Marshal(c.Importance, bs[n:])
	n += ord.String.Marshal(c.PrevID, bs[n:])
	n += ord.String.Marshal(c.NextID, bs[n:])
	n += raw.Float64.Marshal(c.QualityScore, bs[n:])
	n += ord.Bool.Marshal(c.QualityPassed, bs[n:])
	n += timeSer.Marshal(c.CreatedAt, bs[n:])
	return n
}

func (chunkMUS) Unmarshal(bs []byte) (c Chunk, n int, err error) {
	var n1 int
	step := func(f func([]byte) (int, error)) {
		if err != nil {
			return
		}
		n1, err = f(bs[n:])
		n += n1
	}

	step(func(b []byte) (m int, e error) { c.ID, m, e = ord.String.Unmarshal(b); return })
	step(func(b []byte) (m int, e error) { c.DocumentID, m, e = ord.String.Unmarshal(b); return })
	step(func(b []byte) (m int, e error) { c.Index, m, e = varint.Int.Unmarshal(b); return })
	step(func(b []byte) (m int, e error) { c.Total, m, e = varint.Int.Unmarshal(b); return })
	step(func(b []byte) (m int, e error) { c.Content, m, e = ord.String.Unmarshal(b); return })
	step(func(b []byte) (m int, e error) { c.Overlap, m, e = varint.Int.Unmarshal(b); return })
	step(func(b []byte) (m int, e error) {
		var k int
		k, m, e = varint.Int.Unmarshal(b)
		c.Kind = ContentKind(k)
		return
	})
	step(func(b []byte) (m int, e error) { c.Language, m, e = ord.String.Unmarshal(b); return })
	step(func(b []byte) (m int, e error) { c.SectionPath, m, e = stringsSer.Unmarshal(b); return })
	step(func(b []byte) (m int, e error) { c.SectionLevel, m, e = varint.Int.Unmarshal(b); return })
	step(func(b []byte) (m int, e error) { c.Range.Start, m, e = varint.Int.Unmarshal(b); return })
	step(func(b []byte) (m int, e error) { c.Range.End, m, e = varint.Int.Unmarshal(b); return })
	step(func(b []byte) (m int, e error) { c.Concepts, m, e = stringsSer.Unmarshal(b); return })
	step(func(b []byte) (m int, e error) { c.Keywords, m, e = stringsSer.Unmarshal(b); return })
	step(func(b []byte) (m int, e error) { c.Importance, m, e = raw.Float64.Unmarshal(b); return })
	step(func(b []byte) (m int, e error) { c.PrevID, m, e = ord.String.Unmarshal(b); return })
	step(func(b []byte) (m int, e error) { c.NextID, m, e = ord.String.Unmarshal(b); return })
	step(func(b []byte) (m int, e error) { c.QualityScore, m, e = raw.Float64.Unmarshal(b); return })
	step(func(b []byte) (m int, e error) { c.QualityPassed, m, e = ord.Bool.Unmarshal(b); return })
	step(func(b []byte) (m int, e error) { c.CreatedAt, m, e = timeSer.Unmarshal(b); return })

	return c, n, err
}

func (chunkMUS) Size(c Chunk) (size int) {
	size = ord.String.Size(c.ID)
	size += ord.String.Size(c.DocumentID)
	size += varint.Int.Size(c.Index)
	size += varint.Int.Size(c.Total)
	size += ord.String.Size(c.Content)
	size += varint.Int.Size(c.Overlap)
	size += varint.Int.Size(int(c.Kind))
	size += ord.String.Size(c.Language)
	size += stringsSer.Size(c.SectionPath)
	size += varint.Int.Size(c.SectionLevel)
	size += varint.Int.Size(c.Range.Start)
	size += varint.Int.Size(c.Range.End)
	size += stringsSer.Size(c.Concepts)
	size += stringsSer.Size(c.Keywords)
	size += raw.Float64.Size(c.Importance)
	size += ord.String.Size(c.PrevID)
	size += ord.String.Size(c.NextID)
	size += raw.Float64.Size(c.QualityScore)
	size += ord.Bool.Size(c.QualityPassed)
	size += timeSer.Size(c.CreatedAt)
	return size
}

// assessmentSummaryMUS serializes an AssessmentSummary.
type assessmentSummaryMUS struct{}

func (assessmentSummaryMUS) Marshal(a AssessmentSummary, bs []byte) (n int) {
	n = raw.Float64.Marshal(a.Coherence, bs)
	n += raw.Float64.Marshal(a.Density, bs[n:])
	n += raw.Float64.Marshal(a.Completeness, bs[n:])
	n += raw.Float64.Marshal(a.Integrity, bs[n:])
	n += raw.Float64.Marshal(a.Length, bs[n:])
	n += raw.Float64.Marshal(a.Overall, bs[n:])
	n += ord.Bool.Marshal(a.Passed, bs[n:])
	return n
}

func (assessmentSummaryMUS) Unmarshal(bs []byte) (a AssessmentSummary, n int, err error) {
	fields := []*float64{&a.Coherence, &a.Density, &a.Completeness, &a.Integrity, &a.Length, &a.Overall}
	for _, f := range fields {
		var n1 int
		*f, n1, err = raw.Float64.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return a, n, err
		}
	}
	var n1 int
	a.Passed, n1, err = ord.Bool.Unmarshal(bs[n:])
	n += n1
	return a, n, err
}

func (assessmentSummaryMUS) Size(a AssessmentSummary) int {
	return 6*raw.Float64.Size(0) + ord.Bool.Size(a.Passed)
}

var assessmentSer = assessmentSummaryMUS{}

// CacheEntryMUS serializes a CacheEntry.
var CacheEntryMUS = cacheEntryMUS{}

type cacheEntryMUS struct{}

func (cacheEntryMUS) Marshal(e CacheEntry, bs []byte) (n int) {
	n = FingerprintMUS.Marshal(e.Key, bs)
	n += ord.String.Marshal(e.DocumentID, bs[n:])
	n += varint.Int.Marshal(int(e.Strategy), bs[n:])
	n += varint.Int.Marshal(len(e.Chunks), bs[n:])
	for _, c := range e.Chunks {
		n += ChunkMUS.Marshal(*c, bs[n:])
	}
	n += varint.Int.Marshal(len(e.Assessments), bs[n:])
	for _, a := range e.Assessments {
		n += assessmentSer.Marshal(a, bs[n:])
	}
	n += timeSer.Marshal(e.InsertedAt, bs[n:])
	n += timeSer.Marshal(e.LastAccessed, bs[n:])
	n += varint.Int64.Marshal(int64(e.TTL), bs[n:])
	n += varint.Int.Marshal(int(e.Tier), bs[n:])
	n += varint.Uint64.Marshal(e.AccessCount, bs[n:])
	return n
}

func (cacheEntryMUS) Unmarshal(bs []byte) (e CacheEntry, n int, err error) {
	var n1 int

	e.Key, n1, err = FingerprintMUS.Unmarshal(bs)
	n += n1
	if err != nil {
		return e, n, err
	}
	e.DocumentID, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return e, n, err
	}
	var strat int
	strat, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return e, n, err
	}
	e.Strategy = Strategy(strat)

	var count int
	count, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return e, n, err
	}
	if count > 0 {
		e.Chunks = make([]*Chunk, count)
		for i := 0; i < count; i++ {
			var c Chunk
			c, n1, err = ChunkMUS.Unmarshal(bs[n:])
			n += n1
			if err != nil {
				return e, n, err
			}
			e.Chunks[i] = &c
		}
	}

	count, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return e, n, err
	}
	if count > 0 {
		e.Assessments = make([]AssessmentSummary, count)
		for i := 0; i < count; i++ {
			e.Assessments[i], n1, err = assessmentSer.Unmarshal(bs[n:])
			n += n1
			if err != nil {
				return e, n, err
			}
		}
	}

	e.InsertedAt, n1, err = timeSer.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return e, n, err
	}
	e.LastAccessed, n1, err = timeSer.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return e, n, err
	}
	var ttl int64
	ttl, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return e, n, err
	}
	e.TTL = time.Duration(ttl)
	var tier int
	tier, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return e, n, err
	}
	e.Tier = CacheTier(tier)
	e.AccessCount, n1, err = varint.Uint64.Unmarshal(bs[n:])
	n += n1
	return e, n, err
}

func (cacheEntryMUS) Size(e CacheEntry) (size int) {
	size = FingerprintMUS.Size(e.Key)
	size += ord.String.Size(e.DocumentID)
	size += varint.Int.Size(int(e.Strategy))
	size += varint.Int.Size(len(e.Chunks))
	for _, c := range e.Chunks {
		size += ChunkMUS.Size(*c)
	}
	size += varint.Int.Size(len(e.Assessments))
	for _, a := range e.Assessments {
		size += assessmentSer.Size(a)
	}
	size += timeSer.Size(e.InsertedAt)
	size += timeSer.Size(e.LastAccessed)
	size += varint.Int64.Size(int64(e.TTL))
	size += varint.Int.Size(int(e.Tier))
	size += varint.Uint64.Size(e.AccessCount)
	return size
}
