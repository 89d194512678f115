package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/supabase-community/supabase-go"
)

// SupabaseStore keeps values in a PostgREST table with columns
// key (primary key) and value (text):
//
//	create table kv_store (key text primary key, value text not null);
type SupabaseStore struct {
	client *supabase.Client
	table  string
}

type supabaseRow struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// NewSupabaseStore - creates the Supabase client for the given project
func NewSupabaseStore(url, serviceKey, table string) (*SupabaseStore, error) {
	if strings.TrimSpace(table) == "" {
		table = "kv_store"
	}
	client, err := supabase.NewClient(url, serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("kvstore: create supabase client: %w", err)
	}
	return &SupabaseStore{client: client, table: table}, nil
}

func (s *SupabaseStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if strings.TrimSpace(key) == "" {
		return "", false, ErrInvalidKey
	}

	data, _, err := s.client.From(s.table).
		Select("key,value", "", false).
		Eq("key", key).
		Execute()
	if err != nil {
		return "", false, fmt.Errorf("kvstore: supabase select %s: %w", key, err)
	}

	var rows []supabaseRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return "", false, fmt.Errorf("kvstore: parse supabase response: %w", err)
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].Value, true, nil
}

func (s *SupabaseStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}

	_, _, err := s.client.From(s.table).
		Insert(supabaseRow{Key: key, Value: value}, true, "key", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("kvstore: supabase upsert %s: %w", key, err)
	}
	return nil
}

var _ Store = (*SupabaseStore)(nil)
