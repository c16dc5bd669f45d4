package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mahaj/carmarket-chat/pkg/model"
)

type countResponse struct {
	Updated *int `json:"updated,omitempty"`
	Deleted *int `json:"deleted,omitempty"`
}

func (s *server) listConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.chat.Conversations(r.Context(), actor(r))
	if err != nil {
		s.writeChatError(w, r, err)
		return
	}
	if convs == nil {
		convs = []model.Conversation{}
	}
	writeJSON(w, http.StatusOK, convs)
}

// conversationRef builds the conversation addressed by the URL, from the
// caller's side.
func conversationRef(r *http.Request) model.ConversationRef {
	return model.ConversationRef{
		UserA:     actor(r),
		UserB:     chi.URLParam(r, "counterpartID"),
		ListingID: chi.URLParam(r, "listingID"),
	}
}

func (s *server) history(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.chat.History(r.Context(), actor(r), conversationRef(r))
	if err != nil {
		s.writeChatError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *server) deleteConversation(w http.ResponseWriter, r *http.Request) {
	n, err := s.chat.DeleteConversation(r.Context(), actor(r), conversationRef(r))
	if err != nil {
		s.writeChatError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Deleted: &n})
}
