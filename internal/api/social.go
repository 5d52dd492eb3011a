package api

import (
	"net/http"

	"github.com/dyluth/mural/internal/social"
	"github.com/labstack/echo/v4"
)

// The social routes proxy the content-graph service. They never fail because
// of the service: an unconfigured or unreachable service yields empty payloads.

// listComments handles GET /v1/social/comments?content_id=.
func (s *Server) listComments(c echo.Context) error {
	contentID := c.QueryParam("content_id")
	if contentID == "" {
		return errorJSON(c, http.StatusBadRequest, "content_id is required")
	}
	comments := []social.Comment{}
	if s.social != nil {
		comments = s.social.ListComments(c.Request().Context(), contentID)
	}
	return c.JSON(http.StatusOK, List[social.Comment]{Items: comments})
}

// postComment handles POST /v1/social/comments. Returns null when the service
// could not store the comment.
func (s *Server) postComment(c echo.Context) error {
	var req CommentRequest
	if err := c.Bind(&req); err != nil || req.ContentID == "" || req.Text == "" {
		return errorJSON(c, http.StatusBadRequest, "content_id and text are required")
	}
	var comment *social.Comment
	if s.social != nil {
		comment = s.social.PostComment(c.Request().Context(), req.ProfileID, req.ContentID, req.Text)
	}
	return c.JSON(http.StatusOK, comment)
}

// getLikes handles GET /v1/social/likes/:content_id.
func (s *Server) getLikes(c echo.Context) error {
	contentID := c.Param("content_id")
	likes := 0
	if s.social != nil {
		likes = s.social.Likes(c.Request().Context(), contentID)
	}
	return c.JSON(http.StatusOK, LikesView{ContentID: contentID, Likes: likes})
}

// like handles POST /v1/social/likes/:content_id. Like and unlike respond with
// the count after the change.
func (s *Server) like(c echo.Context) error {
	return s.toggleLike(c, true)
}

// unlike handles DELETE /v1/social/likes/:content_id.
func (s *Server) unlike(c echo.Context) error {
	return s.toggleLike(c, false)
}

func (s *Server) toggleLike(c echo.Context, like bool) error {
	var req LikeRequest
	if err := c.Bind(&req); err != nil || req.ProfileID == "" {
		return errorJSON(c, http.StatusBadRequest, "profile_id is required")
	}
	contentID := c.Param("content_id")
	if s.social == nil {
		return c.JSON(http.StatusOK, LikesView{ContentID: contentID})
	}

	ctx := c.Request().Context()
	var likes int
	if like {
		likes = s.social.Like(ctx, req.ProfileID, contentID)
	} else {
		likes = s.social.Unlike(ctx, req.ProfileID, contentID)
	}
	return c.JSON(http.StatusOK, LikesView{ContentID: contentID, Likes: likes})
}

// findOrCreateProfile handles POST /v1/social/profiles.
func (s *Server) findOrCreateProfile(c echo.Context) error {
	var req ProfileRequest
	if err := c.Bind(&req); err != nil || req.Wallet == "" {
		return errorJSON(c, http.StatusBadRequest, "wallet is required")
	}
	var profile *social.Profile
	if s.social != nil {
		profile = s.social.FindOrCreateProfile(c.Request().Context(), req.Wallet)
	}
	return c.JSON(http.StatusOK, profile)
}
