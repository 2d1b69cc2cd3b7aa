package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	PostKeyPrefix     = "post:%d"
	PostSlugKeyPrefix = "post:slug:%s"
	PostsListPrefix   = "posts:list:%s"
	StepsKeyPrefix    = "post:%d:steps"
	CategoryCountsKey = "posts:category_counts"
	// PostsListGroup fences every listing page at once.
	PostsListGroup = "posts:list"
)

const (
	PostTTL      = 30 * time.Minute
	PostsListTTL = 5 * time.Minute
	StepsTTL     = 30 * time.Minute
)

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

func PostSlugKey(slug string) string {
	return fmt.Sprintf(PostSlugKeyPrefix, slug)
}

// PostsListKey keys a listing; an empty category is the unfiltered list.
func PostsListKey(category string) string {
	if category == "" {
		category = "*all*"
	}
	return fmt.Sprintf(PostsListPrefix, category)
}

func StepsKey(postID uint) string {
	return fmt.Sprintf(StepsKeyPrefix, postID)
}

// InvalidatePost drops every cached view that can contain the post.
// slugs lists the post's current and previous slugs.
func (c *Cache) InvalidatePost(ctx context.Context, postID uint, slugs ...string) {
	keys := []string{PostKey(postID), StepsKey(postID), CategoryCountsKey}
	for _, s := range slugs {
		if s != "" {
			keys = append(keys, PostSlugKey(s))
		}
	}
	c.Invalidate(ctx, keys...)
	c.InvalidateGroup(ctx, PostsListGroup, fmt.Sprintf(PostsListPrefix, "*"))
}

// InvalidateSteps drops the cached step list of a post.
func (c *Cache) InvalidateSteps(ctx context.Context, postID uint) {
	c.Invalidate(ctx, StepsKey(postID))
}
