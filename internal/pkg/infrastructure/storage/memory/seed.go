package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/diwise/temporal-context-broker/internal/pkg/application/temporal"
)

var reservedMembers = map[string]bool{
	"@context":   true,
	"id":         true,
	"type":       true,
	"createdAt":  true,
	"modifiedAt": true,
	"scope":      true,
}

var temporalMembers = []string{"datasetId", "observedAt", "createdAt", "modifiedAt", "sub"}

// Load reads a list of entities in their normalized temporal representation
// and stores every attribute instance they contain. Entity types and
// attribute names are passed through expand before they are stored.
func (s *Store) Load(ctx context.Context, tenant string, r io.Reader, expand func(string) string) (int, error) {
	docs := []map[string]json.RawMessage{}
	if err := json.NewDecoder(r).Decode(&docs); err != nil {
		return 0, fmt.Errorf("failed to decode temporal entities: %w", err)
	}

	for _, doc := range docs {
		if err := s.loadEntity(ctx, tenant, doc, expand); err != nil {
			return 0, err
		}
	}

	return len(docs), nil
}

func (s *Store) loadEntity(ctx context.Context, tenant string, doc map[string]json.RawMessage, expand func(string) string) error {
	var entityID string
	if err := json.Unmarshal(doc["id"], &entityID); err != nil || entityID == "" {
		return fmt.Errorf("temporal entity without a valid id")
	}

	types, err := stringOrList(doc["type"])
	if err != nil || len(types) == 0 {
		return fmt.Errorf("temporal entity %s has no valid type", entityID)
	}
	for i := range types {
		types[i] = expand(types[i])
	}

	createdAt := time.Now().UTC()
	if raw, ok := doc["createdAt"]; ok {
		if err := json.Unmarshal(raw, &createdAt); err != nil {
			return fmt.Errorf("temporal entity %s has an invalid createdAt: %w", entityID, err)
		}
	}

	if err := s.CreateEntity(ctx, tenant, entityID, types, createdAt); err != nil {
		return err
	}

	if raw, ok := doc["scope"]; ok {
		instances, err := objectOrList(raw)
		if err != nil {
			return fmt.Errorf("invalid scope history of %s: %w", entityID, err)
		}

		for _, i := range instances {
			at := createdAt
			for _, tp := range []string{"modifiedAt", "observedAt"} {
				if t, ok := timeMember(i, tp); ok {
					at = t
					break
				}
			}
			if err := s.AddScope(ctx, tenant, entityID, i["value"], at); err != nil {
				return err
			}
		}
	}

	for _, name := range slices.Sorted(maps.Keys(doc)) {
		if reservedMembers[name] {
			continue
		}

		instances, err := objectOrList(doc[name])
		if err != nil {
			return fmt.Errorf("invalid history of attribute %s of %s: %w", name, entityID, err)
		}

		for _, i := range instances {
			attr, instance := instanceFromMember(entityID, expand(name), i)
			if err := s.AddInstance(ctx, tenant, attr, instance); err != nil {
				return err
			}
		}
	}

	return nil
}

func instanceFromMember(entityID, name string, member map[string]json.RawMessage) (temporal.Attribute, Instance) {
	attr := temporal.Attribute{
		EntityID: entityID,
		Name:     name,
		Type:     temporal.Property,
	}

	var attrType string
	if json.Unmarshal(member["type"], &attrType) == nil && attrType != "" {
		attr.Type = temporal.AttributeType(attrType)
	}

	json.Unmarshal(member["datasetId"], &attr.DatasetID)

	instance := Instance{}
	json.Unmarshal(member["sub"], &instance.Sub)

	if t, ok := timeMember(member, "observedAt"); ok {
		instance.ObservedAt = &t
	}
	if t, ok := timeMember(member, "createdAt"); ok {
		instance.CreatedAt = t
	}
	if t, ok := timeMember(member, "modifiedAt"); ok {
		instance.ModifiedAt = t
	}
	if instance.CreatedAt.IsZero() && instance.ObservedAt != nil {
		instance.CreatedAt = *instance.ObservedAt
	}

	payload := map[string]json.RawMessage{}
	for k, v := range member {
		payload[k] = v
	}
	for _, k := range temporalMembers {
		delete(payload, k)
	}

	instance.Payload, _ = json.Marshal(payload)

	return attr, instance
}

func timeMember(member map[string]json.RawMessage, name string) (time.Time, bool) {
	raw, ok := member[name]
	if !ok {
		return time.Time{}, false
	}

	var t time.Time
	if err := json.Unmarshal(raw, &t); err != nil {
		return time.Time{}, false
	}

	return t.UTC(), true
}

func objectOrList(raw json.RawMessage) ([]map[string]json.RawMessage, error) {
	list := []map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	obj := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}

	return []map[string]json.RawMessage{obj}, nil
}

func stringOrList(raw json.RawMessage) ([]string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []string{s}, nil
	}

	list := []string{}
	err := json.Unmarshal(raw, &list)
	return list, err
}
