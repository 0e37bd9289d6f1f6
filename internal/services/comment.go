package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"commfeed/internal/apperr"
	"commfeed/internal/logging"
	"commfeed/internal/metrics"
	"commfeed/internal/models"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// MaxBodyLength 帖子与评论正文的最大字符数
const MaxBodyLength = 10000

// PostDetail 帖子详情：帖子本身、评论森林、每条评论的点赞数
type PostDetail struct {
	Post         models.Post
	Thread       Thread
	CommentLikes map[uint]int
}

// CommentService 帖子与评论的读写
type CommentService struct {
	db    *gorm.DB
	clock clockwork.Clock
}

func NewCommentService(conn *gorm.DB, clock clockwork.Clock) *CommentService {
	return &CommentService{db: conn, clock: clock}
}

// CreatePost 发布帖子
func (s *CommentService) CreatePost(ctx context.Context, authorID uint, body string) (*models.Post, error) {
	body, err := normalizeBody(body)
	if err != nil {
		return nil, err
	}

	post := models.Post{
		UserID:    authorID,
		Body:      body,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		return nil, apperr.Storage("create post", err)
	}
	return &post, nil
}

// GetPost 查询单个帖子并填充点赞数与评论数
func (s *CommentService) GetPost(ctx context.Context, postID uint) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).Preload("User").First(&post, postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("post %d not found", postID)
	}
	if err != nil {
		return nil, apperr.Storage("load post", err)
	}

	posts := []models.Post{post}
	if err := s.fillCounts(ctx, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// ListPosts 最新帖子列表，新的在前
func (s *CommentService) ListPosts(ctx context.Context, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := s.db.WithContext(ctx).
		Preload("User").
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, apperr.Storage("list posts", err)
	}
	if err := s.fillCounts(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// fillCounts 批量填充帖子的点赞数与评论数，各一次查询
func (s *CommentService) fillCounts(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	postIDs := make([]uint, len(posts))
	for i, p := range posts {
		postIDs[i] = p.ID
	}

	comments, err := countBy(s.db.WithContext(ctx).Model(&models.Comment{}), "post_id", postIDs)
	if err != nil {
		return apperr.Storage("count comments", err)
	}
	likes, err := countBy(s.db.WithContext(ctx).Model(&models.Reaction{}), "post_id", postIDs)
	if err != nil {
		return apperr.Storage("count post likes", err)
	}

	for i := range posts {
		posts[i].CommentCount = comments[posts[i].ID]
		posts[i].LikeCount = likes[posts[i].ID]
	}
	return nil
}

// CreateComment 发表评论。parentID 非空时父评论必须存在且属于同一帖子，
// 跨帖子的父评论在写入前就被拒绝。
func (s *CommentService) CreateComment(ctx context.Context, authorID, postID uint, body string, parentID *uint) (*models.Comment, error) {
	body, err := normalizeBody(body)
	if err != nil {
		return nil, err
	}

	conn := s.db.WithContext(ctx)

	var postCount int64
	if err := conn.Model(&models.Post{}).Where("id = ?", postID).Count(&postCount).Error; err != nil {
		return nil, apperr.Storage("load post", err)
	}
	if postCount == 0 {
		return nil, apperr.NotFound("post %d not found", postID)
	}

	if parentID != nil {
		var parent models.Comment
		err := conn.Select("id, post_id").First(&parent, *parentID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("parent comment %d not found", *parentID)
		}
		if err != nil {
			return nil, apperr.Storage("load parent comment", err)
		}
		if parent.PostID != postID {
			return nil, apperr.Validation("parent comment %d belongs to another post", *parentID)
		}
	}

	comment := models.Comment{
		PostID:    postID,
		ParentID:  parentID,
		UserID:    authorID,
		Body:      body,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := conn.Create(&comment).Error; err != nil {
		return nil, apperr.Storage("create comment", err)
	}
	return &comment, nil
}

// GetThread 一次批量读取帖子的全部评论并组装成森林，不按层级查询
func (s *CommentService) GetThread(ctx context.Context, postID uint) (Thread, error) {
	comments, err := s.loadComments(ctx, postID)
	if err != nil {
		return Thread{}, err
	}
	return s.assemble(ctx, postID, comments), nil
}

// GetPostDetail 帖子 + 评论森林 + 评论点赞数
func (s *CommentService) GetPostDetail(ctx context.Context, postID uint) (*PostDetail, error) {
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	comments, err := s.loadComments(ctx, postID)
	if err != nil {
		return nil, err
	}

	commentIDs := make([]uint, len(comments))
	for i, c := range comments {
		commentIDs[i] = c.ID
	}
	likes, err := countBy(s.db.WithContext(ctx).Model(&models.Reaction{}), "comment_id", commentIDs)
	if err != nil {
		return nil, apperr.Storage("count comment likes", err)
	}

	return &PostDetail{
		Post:         *post,
		Thread:       s.assemble(ctx, postID, comments),
		CommentLikes: likes,
	}, nil
}

func (s *CommentService) loadComments(ctx context.Context, postID uint) ([]models.Comment, error) {
	var postCount int64
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", postID).Count(&postCount).Error; err != nil {
		return nil, apperr.Storage("load post", err)
	}
	if postCount == 0 {
		return nil, apperr.NotFound("post %d not found", postID)
	}

	var comments []models.Comment
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("post_id = ?", postID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, apperr.Storage("load comments", err)
	}
	return comments, nil
}

func (s *CommentService) assemble(ctx context.Context, postID uint, comments []models.Comment) Thread {
	thread := BuildThread(comments)
	if len(thread.Dropped) > 0 {
		metrics.ThreadOrphansDropped.Add(float64(len(thread.Dropped)))
		logging.FromContext(ctx).Warn("dropped orphan comments", "post_id", postID, "comment_ids", thread.Dropped)
	}
	return thread
}

// countBy 按 column 分组计数，返回 id -> 数量
func countBy(query *gorm.DB, column string, ids []uint) (map[uint]int, error) {
	counts := make(map[uint]int)
	if len(ids) == 0 {
		return counts, nil
	}

	type CountResult struct {
		ID    uint
		Count int
	}
	var results []CountResult
	err := query.
		Select(column+" AS id, COUNT(*) AS count").
		Where(column+" IN ?", ids).
		Group(column).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		counts[r.ID] = r.Count
	}
	return counts, nil
}

// normalizeBody 去掉首尾空白并校验长度
func normalizeBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", apperr.Validation("body must not be empty")
	}
	if utf8.RuneCountInString(body) > MaxBodyLength {
		return "", apperr.Validation("body exceeds %d characters", MaxBodyLength)
	}
	return body, nil
}
