package handlers

import (
	"net/http"
	"time"

	"commfeed/internal/middleware"
	"commfeed/internal/models"
	"commfeed/internal/services"
	"commfeed/internal/utils"

	"github.com/gin-gonic/gin"
)

const (
	defaultPostLimit = 30
	maxPostLimit     = 100
)

type PostHandler struct {
	comments  *services.CommentService
	reactions *services.ReactionService
}

func NewPostHandler(comments *services.CommentService, reactions *services.ReactionService) *PostHandler {
	return &PostHandler{comments: comments, reactions: reactions}
}

// PostView 帖子响应
type PostView struct {
	ID           uint      `json:"id"`
	UserID       uint      `json:"user_id"`
	Username     string    `json:"username"`
	Body         string    `json:"body"`
	BodyHTML     string    `json:"body_html"`
	CreatedAt    time.Time `json:"created_at"`
	LikeCount    int       `json:"like_count"`
	CommentCount int       `json:"comment_count"`
	Liked        bool      `json:"liked"`
}

// CommentView 评论响应，Replies 为直接回复
type CommentView struct {
	ID        uint           `json:"id"`
	ParentID  *uint          `json:"parent_id"`
	UserID    uint           `json:"user_id"`
	Username  string         `json:"username"`
	Body      string         `json:"body"`
	BodyHTML  string         `json:"body_html"`
	CreatedAt time.Time      `json:"created_at"`
	// Depth 在评论树中的深度，根评论为 0
	Depth     int            `json:"depth"`
	LikeCount int            `json:"like_count"`
	Liked     bool           `json:"liked"`
	Replies   []*CommentView `json:"replies"`
}

func newPostView(p models.Post, liked bool) PostView {
	return PostView{
		ID:           p.ID,
		UserID:       p.UserID,
		Username:     p.User.Username,
		Body:         p.Body,
		BodyHTML:     utils.RenderMarkdown(p.Body),
		CreatedAt:    p.CreatedAt,
		LikeCount:    p.LikeCount,
		CommentCount: p.CommentCount,
		Liked:        liked,
	}
}

func newCommentView(cm models.Comment, depth int) *CommentView {
	return &CommentView{
		ID:        cm.ID,
		ParentID:  cm.ParentID,
		UserID:    cm.UserID,
		Username:  cm.User.Username,
		Body:      cm.Body,
		BodyHTML:  utils.RenderMarkdown(cm.Body),
		CreatedAt: cm.CreatedAt,
		Depth:     depth,
		Replies:   []*CommentView{},
	}
}

// buildCommentViews 把评论森林转换成嵌套响应。
// 先序遍历时 path[d] 保存当前深度 d 上最近访问的节点，它就是深度 d+1 节点的父节点。
func buildCommentViews(thread services.Thread, likes map[uint]int, liked map[uint]bool) []*CommentView {
	roots := make([]*CommentView, 0, len(thread.Roots))
	var path []*CommentView

	services.Walk(thread.Roots, func(node *services.ThreadNode, depth int) {
		view := newCommentView(node.Comment, depth)
		view.LikeCount = likes[view.ID]
		view.Liked = liked[view.ID]

		path = append(path[:depth], view)
		if depth == 0 {
			roots = append(roots, view)
			return
		}
		parent := path[depth-1]
		parent.Replies = append(parent.Replies, view)
	})
	return roots
}

// List 最新帖子
func (h *PostHandler) List(c *gin.Context) {
	limit := utils.StringToInt(c.DefaultQuery("limit", "30"))
	if limit <= 0 {
		limit = defaultPostLimit
	}
	if limit > maxPostLimit {
		limit = maxPostLimit
	}

	ctx := c.Request.Context()
	posts, err := h.comments.ListPosts(ctx, limit)
	if err != nil {
		RenderError(c, err)
		return
	}

	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	liked, err := h.reactions.ReactedTargets(ctx, currentUserID(c), models.TargetPost, ids)
	if err != nil {
		RenderError(c, err)
		return
	}

	views := make([]PostView, len(posts))
	for i, p := range posts {
		views[i] = newPostView(p, liked[p.ID])
	}
	c.JSON(http.StatusOK, gin.H{"posts": views})
}

type createPostRequest struct {
	Body string `json:"body"`
}

func (h *PostHandler) Create(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	user := middleware.CurrentUser(c)
	post, err := h.comments.CreatePost(c.Request.Context(), user.ID, req.Body)
	if err != nil {
		RenderError(c, err)
		return
	}
	post.User = *user

	c.JSON(http.StatusCreated, gin.H{"post": newPostView(*post, false)})
}

// Detail 帖子 + 嵌套评论
func (h *PostHandler) Detail(c *gin.Context) {
	postID, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	detail, err := h.comments.GetPostDetail(ctx, postID)
	if err != nil {
		RenderError(c, err)
		return
	}

	userID := currentUserID(c)
	postLiked, err := h.reactions.ReactedTargets(ctx, userID, models.TargetPost, []uint{postID})
	if err != nil {
		RenderError(c, err)
		return
	}

	var commentIDs []uint
	services.Walk(detail.Thread.Roots, func(node *services.ThreadNode, _ int) {
		commentIDs = append(commentIDs, node.Comment.ID)
	})
	commentLiked, err := h.reactions.ReactedTargets(ctx, userID, models.TargetComment, commentIDs)
	if err != nil {
		RenderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"post":          newPostView(detail.Post, postLiked[postID]),
		"comments":      buildCommentViews(detail.Thread, detail.CommentLikes, commentLiked),
		"comment_count": detail.Thread.Size,
		"dropped_count": len(detail.Thread.Dropped),
	})
}

type createCommentRequest struct {
	Body     string `json:"body"`
	ParentID *uint  `json:"parent_id"`
}

func (h *PostHandler) CreateComment(c *gin.Context) {
	postID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	user := middleware.CurrentUser(c)
	comment, err := h.comments.CreateComment(c.Request.Context(), user.ID, postID, req.Body, req.ParentID)
	if err != nil {
		RenderError(c, err)
		return
	}
	comment.User = *user

	c.JSON(http.StatusCreated, gin.H{"comment": newCommentView(*comment, 0)})
}
