package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/topiclens/topiclens-backend/internal/middleware"
	"github.com/topiclens/topiclens-backend/internal/service"
)

func TestUploadRejectsFileOverConfiguredLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(bytes.Repeat([]byte("a"), 64)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	h := NewCurriculumHandler(nil, 16) // limit well below the payload

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/teacher/curricula", &body)
	c.Request.Header.Set("Content-Type", mw.FormDataContentType())
	c.Set(middleware.ContextKeyClaims, &service.Claims{TeacherID: 1})

	h.Upload(c)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusRequestEntityTooLarge)
	}
}
