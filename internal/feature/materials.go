package feature

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sort"

	"github.com/google/uuid"
	"liveclass/internal/liveview"
	"liveclass/internal/session"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

const materialsView = "materials"

// MaterialDraft is the teacher's add-material form. Link materials need a
// URL that parses; file materials carry the uploaded file's name and size.
type MaterialDraft struct {
	Title       string `validate:"required"`
	Description string
	Type        string `validate:"required,oneof=link file"`
	URL         string
	FileName    string
	FileSize    string
}

// MaterialsSync synchronizes shared room materials.
type MaterialsSync struct {
	store   interfaces.Store
	session *session.Context
	views   *liveview.ViewSet
}

// NewMaterialsSync creates a materials synchronizer.
func NewMaterialsSync(store interfaces.Store, sess *session.Context) *MaterialsSync {
	return &MaterialsSync{
		store:   store,
		session: sess,
		views:   liveview.NewViewSet(store),
	}
}

// Add validates the draft and shares it with the room. Teacher action.
func (s *MaterialsSync) Add(ctx context.Context, draft MaterialDraft) (string, error) {
	if err := validate.Struct(draft); err != nil {
		return "", fmt.Errorf("invalid material draft: %w", err)
	}

	switch draft.Type {
	case types.MaterialTypeLink:
		u, err := url.Parse(draft.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return "", ErrInvalidURL
		}
	case types.MaterialTypeFile:
		if draft.FileName == "" {
			return "", ErrMissingFileName
		}
	}

	roomCode := s.session.RoomCode()
	if roomCode == "" {
		return "", session.ErrNoActiveRoom
	}

	id := uuid.New().String()
	fields := map[string]any{
		"title":       draft.Title,
		"description": draft.Description,
		"type":        draft.Type,
		"url":         draft.URL,
		"fileName":    draft.FileName,
		"fileSize":    draft.FileSize,
		"roomCode":    roomCode,
		"createdAt":   types.ServerTimestamp,
	}
	if err := s.store.Put(ctx, types.CollectionMaterials, id, fields); err != nil {
		return "", fmt.Errorf("failed to add material: %w", err)
	}
	return id, nil
}

// Remove deletes one material. Teacher action.
func (s *MaterialsSync) Remove(ctx context.Context, materialID string) error {
	if err := s.store.Delete(ctx, types.CollectionMaterials, materialID); err != nil {
		return fmt.Errorf("failed to remove material: %w", err)
	}
	return nil
}

// OpenList starts the live view over the room's materials in creation
// order. Both roles render from the same aggregate.
func (s *MaterialsSync) OpenList(render func([]*types.Material)) error {
	roomCode := s.session.RoomCode()
	if roomCode == "" {
		return session.ErrNoActiveRoom
	}

	filters := []types.Filter{{Field: "roomCode", Value: roomCode}}
	return s.views.Open(materialsView, types.CollectionMaterials, filters,
		func(docs []types.Document) {
			if s.session.RoomCode() != roomCode {
				return
			}
			render(decodeMaterials(docs))
		})
}

// Cleanup disposes every open view. Idempotent.
func (s *MaterialsSync) Cleanup() {
	s.views.CloseAll()
}

func decodeMaterials(docs []types.Document) []*types.Material {
	materials := make([]*types.Material, 0, len(docs))
	for _, doc := range docs {
		m, err := types.DecodeMaterial(doc)
		if err != nil {
			log.Printf("Skipping undecodable material %s: %v", doc.ID, err)
			continue
		}
		materials = append(materials, m)
	}
	sort.SliceStable(materials, func(i, j int) bool {
		return materials[i].CreatedAt.Before(materials[j].CreatedAt)
	})
	return materials
}
