package utils

import (
	"encoding/json"
	"net/http"

	"fitting-room-server/modules/common/model"
)

// WriteJSON - status plus JSON body
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// WriteSuccess - {success:true, data}
func WriteSuccess(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, model.APIResponse{Success: true, Data: data})
}

// WriteError - {success:false, errorMessage, code, data}
func WriteError(w http.ResponseWriter, status int, code, message string, data any) {
	WriteJSON(w, status, model.APIResponse{Success: false, ErrorMessage: message, Code: code, Data: data})
}
