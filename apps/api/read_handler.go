package main

import "net/http"

// markRead clears the caller's unread messages in one conversation. Only
// messages the counterpart sent are touched.
func (s *server) markRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.chat.MarkConversationRead(r.Context(), actor(r), conversationRef(r))
	if err != nil {
		s.writeChatError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Updated: &n})
}
