package store

import (
	"context"
	"fmt"
	"math"

	entsql "entgo.io/ent/dialect/sql"
)

const (
	defaultEdgeStrength = 1.0
	edgeStrengthStep    = 0.1
	maxEdgeStrength     = 2.0
)

var nodeColumns = []string{
	"owner", "topic", "times_taught", "avg_confidence", "avg_clarity",
	"related_concepts", "persistent_gaps", "first_taught", "last_taught",
}

type knowledgeRepo struct {
	s *Store
}

func (r *knowledgeRepo) RecordTeaching(ctx context.Context, rec TeachingRecord) (*KnowledgeNode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	node, err := r.loadNode(ctx, rec.Owner, rec.Topic)
	if err != nil {
		return nil, err
	}

	if node == nil {
		node = &KnowledgeNode{
			Owner:           rec.Owner,
			Topic:           rec.Topic,
			TimesTaught:     1,
			AvgConfidence:   rec.Confidence,
			AvgClarity:      rec.Clarity,
			RelatedConcepts: mergeSet(nil, rec.Related),
			PersistentGaps:  mergeSet(nil, rec.Gaps),
			FirstTaught:     rec.At,
			LastTaught:      rec.At,
		}
	} else {
		n := float64(node.TimesTaught)
		node.TimesTaught++
		node.AvgConfidence = (node.AvgConfidence*n + rec.Confidence) / (n + 1)
		node.AvgClarity = (node.AvgClarity*n + rec.Clarity) / (n + 1)
		node.RelatedConcepts = mergeSet(node.RelatedConcepts, rec.Related)
		node.PersistentGaps = mergeSet(node.PersistentGaps, rec.Gaps)
		node.LastTaught = rec.At
	}

	q, args := builder().Insert("knowledge_nodes").
		Columns(nodeColumns...).
		Values(node.Owner, node.Topic, node.TimesTaught, node.AvgConfidence, node.AvgClarity,
			encodeStrings(node.RelatedConcepts), encodeStrings(node.PersistentGaps),
			formatTime(node.FirstTaught), formatTime(node.LastTaught)).
		OnConflict(entsql.ConflictColumns("owner", "topic"), entsql.ResolveWithNewValues()).
		Query()
	if err := r.s.exec(ctx, q, args); err != nil {
		return nil, fmt.Errorf("save knowledge node %s/%s: %w", rec.Owner, rec.Topic, err)
	}
	return node, nil
}

func (r *knowledgeRepo) LinkConcepts(ctx context.Context, edge KnowledgeEdge) (*KnowledgeEdge, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if edge.Relationship == "" {
		edge.Relationship = "related_to"
	}

	q, args := builder().Select("strength").
		From(entsql.Table("knowledge_edges")).
		Where(entsql.And(
			entsql.EQ("owner", edge.Owner),
			entsql.EQ("from_topic", edge.From),
			entsql.EQ("to_topic", edge.To),
		)).
		Query()
	rows, err := r.s.query(ctx, q, args)
	if err != nil {
		return nil, fmt.Errorf("query knowledge edge: %w", err)
	}
	var (
		existing float64
		found    bool
	)
	if rows.Next() {
		if err := rows.Scan(&existing); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan knowledge edge: %w", err)
		}
		found = true
	}
	rows.Close()

	switch {
	case found:
		edge.Strength = math.Min(existing+edgeStrengthStep, maxEdgeStrength)
	case edge.Strength <= 0:
		edge.Strength = defaultEdgeStrength
	}

	q, args = builder().Insert("knowledge_edges").
		Columns("owner", "from_topic", "to_topic", "relationship", "strength").
		Values(edge.Owner, edge.From, edge.To, edge.Relationship, edge.Strength).
		OnConflict(entsql.ConflictColumns("owner", "from_topic", "to_topic"), entsql.ResolveWithNewValues()).
		Query()
	if err := r.s.exec(ctx, q, args); err != nil {
		return nil, fmt.Errorf("save knowledge edge %s->%s: %w", edge.From, edge.To, err)
	}
	return &edge, nil
}

func (r *knowledgeRepo) Graph(ctx context.Context, owner string) ([]KnowledgeNode, []KnowledgeEdge, error) {
	q, args := builder().Select(nodeColumns...).
		From(entsql.Table("knowledge_nodes")).
		Where(entsql.EQ("owner", owner)).
		OrderBy("topic").
		Query()
	rows, err := r.s.query(ctx, q, args)
	if err != nil {
		return nil, nil, fmt.Errorf("query knowledge nodes: %w", err)
	}
	var nodes []KnowledgeNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			rows.Close()
			return nil, nil, err
		}
		nodes = append(nodes, *n)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, nil, err
	}
	rows.Close()

	q, args = builder().Select("owner", "from_topic", "to_topic", "relationship", "strength").
		From(entsql.Table("knowledge_edges")).
		Where(entsql.EQ("owner", owner)).
		OrderBy("from_topic", "to_topic").
		Query()
	rows, err = r.s.query(ctx, q, args)
	if err != nil {
		return nil, nil, fmt.Errorf("query knowledge edges: %w", err)
	}
	defer rows.Close()

	var edges []KnowledgeEdge
	for rows.Next() {
		var e KnowledgeEdge
		if err := rows.Scan(&e.Owner, &e.From, &e.To, &e.Relationship, &e.Strength); err != nil {
			return nil, nil, fmt.Errorf("scan knowledge edge: %w", err)
		}
		edges = append(edges, e)
	}
	return nodes, edges, rows.Err()
}

func (r *knowledgeRepo) loadNode(ctx context.Context, owner, topic string) (*KnowledgeNode, error) {
	q, args := builder().Select(nodeColumns...).
		From(entsql.Table("knowledge_nodes")).
		Where(entsql.And(entsql.EQ("owner", owner), entsql.EQ("topic", topic))).
		Query()
	rows, err := r.s.query(ctx, q, args)
	if err != nil {
		return nil, fmt.Errorf("query knowledge node: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanNode(rows)
}

func scanNode(rows *entsql.Rows) (*KnowledgeNode, error) {
	var (
		n             KnowledgeNode
		related, gaps string
		first, last   string
	)
	if err := rows.Scan(&n.Owner, &n.Topic, &n.TimesTaught, &n.AvgConfidence, &n.AvgClarity,
		&related, &gaps, &first, &last); err != nil {
		return nil, fmt.Errorf("scan knowledge node: %w", err)
	}
	n.RelatedConcepts = decodeStrings(related)
	n.PersistentGaps = decodeStrings(gaps)
	n.FirstTaught = parseTime(first)
	n.LastTaught = parseTime(last)
	return &n, nil
}

// mergeSet appends the values of add missing from base, keeping first-seen
// order.
func mergeSet(base, add []string) []string {
	seen := make(map[string]struct{}, len(base)+len(add))
	out := make([]string, 0, len(base)+len(add))
	for _, v := range append(append([]string(nil), base...), add...) {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
