package services

import (
	"sort"

	"commfeed/internal/models"
)

// ThreadNode 评论树节点。评论记录本身保持只读，子节点列表只存在于这层包装上。
type ThreadNode struct {
	Comment  models.Comment
	Children []*ThreadNode
}

// Thread 一个帖子下的评论森林
type Thread struct {
	// Roots 按 (created_at, id) 升序排列的根评论
	Roots []*ThreadNode
	// Dropped 无法挂到任何根上的评论 id（父评论不存在、跨帖子、成环，以及它们的子孙），升序
	Dropped []uint
	// Size 森林中的节点总数 = 去重后的输入数 - len(Dropped)。
	// 重复 id 只保留第一条，其余既不计入 Size 也不计入 Dropped。
	Size int
}

// BuildThread 把同一帖子的扁平评论集合组装成有序森林，O(n) 建树，排序 O(n log n)。
//
// 孤儿策略：父评论在集合中找不到的评论连同其整棵子树被丢弃，并记录在 Thread.Dropped，
// 不会提升为根评论。写入时 CommentService.CreateComment 已拒绝跨帖子的父评论，
// 所以这里只会遇到历史脏数据。
//
// 输入顺序不影响输出；输入 id 视为唯一，重复 id 只保留第一条。
func BuildThread(comments []models.Comment) Thread {
	sorted := make([]models.Comment, len(comments))
	copy(sorted, comments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return commentBefore(&sorted[i], &sorted[j])
	})

	// 1. id -> 节点
	nodes := make(map[uint]*ThreadNode, len(sorted))
	ordered := make([]*ThreadNode, 0, len(sorted))
	for i := range sorted {
		if _, dup := nodes[sorted[i].ID]; dup {
			continue
		}
		node := &ThreadNode{Comment: sorted[i]}
		nodes[node.Comment.ID] = node
		ordered = append(ordered, node)
	}

	// 2. 单次遍历挂载，按排序顺序追加，子节点天然有序
	var roots []*ThreadNode
	for _, node := range ordered {
		parentID := node.Comment.ParentID
		if parentID == nil {
			roots = append(roots, node)
			continue
		}
		if parent, ok := nodes[*parentID]; ok {
			parent.Children = append(parent.Children, node)
		}
	}

	// 3. 从根出发可达的才算在树里，成环或挂在孤儿下面的节点都不可达
	reachable := make(map[uint]struct{}, len(ordered))
	Walk(roots, func(node *ThreadNode, _ int) {
		reachable[node.Comment.ID] = struct{}{}
	})

	var dropped []uint
	for _, node := range ordered {
		if _, ok := reachable[node.Comment.ID]; !ok {
			dropped = append(dropped, node.Comment.ID)
		}
	}
	sort.Slice(dropped, func(i, j int) bool { return dropped[i] < dropped[j] })

	return Thread{Roots: roots, Dropped: dropped, Size: len(reachable)}
}

// Walk 先序遍历森林，使用显式栈，深层嵌套不会耗尽调用栈。depth 从 0 开始。
func Walk(roots []*ThreadNode, fn func(node *ThreadNode, depth int)) {
	type frame struct {
		node  *ThreadNode
		depth int
	}

	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{roots[i], 0})
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		fn(top.node, top.depth)

		children := top.node.Children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{children[i], top.depth + 1})
		}
	}
}

// commentBefore 稳定排序键：创建时间升序，时间相同按 id 升序
func commentBefore(a, b *models.Comment) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
