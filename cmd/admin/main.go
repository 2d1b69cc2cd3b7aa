// Package main provides content management utilities for operators.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"cozytiny/internal/bootstrap"
	"cozytiny/internal/cache"
	"cozytiny/internal/config"
	"cozytiny/internal/models"
	"cozytiny/internal/repository"
	"cozytiny/internal/service"
	"cozytiny/internal/upload"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin list-posts [category]   - List posts, newest first")
	fmt.Println("  go run ./cmd/admin delete-post <post_id>   - Delete a post and its steps")
	fmt.Println("  go run ./cmd/admin categories              - Post counts per category")
	fmt.Println("  go run ./cmd/admin sweep-uploads           - Remove unreferenced uploads now")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	command := os.Args[1]
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{
		WithRedis: true,
		WithStore: command == "sweep-uploads",
	})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() { _ = rt.Close(ctx) }()

	// Going through the cache keeps the running server from serving deleted posts.
	c := cache.New(rt.Redis)
	postRepo := repository.NewPostRepository(rt.DB, c)
	posts := service.NewPostService(postRepo, repository.NewStepRepository(rt.DB, c),
		models.NewCategorySet(cfg.CategoryList()), nil, cfg.SlugSuffixOnConflict)

	switch command {
	case "list-posts":
		category := ""
		if len(os.Args) > 2 {
			category = os.Args[2]
		}
		err = listPosts(ctx, posts, category)
	case "delete-post":
		if len(os.Args) < 3 {
			usage()
		}
		err = deletePost(ctx, posts, os.Args[2])
	case "categories":
		err = listCategories(ctx, posts)
	case "sweep-uploads":
		err = sweepUploads(ctx, rt.Store, postRepo, cfg)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		usage()
	}
	if err != nil {
		_ = rt.Close(ctx)
		log.Fatalf("%s failed: %v", command, err)
	}
}

func listPosts(ctx context.Context, posts *service.PostService, category string) error {
	list, err := posts.ListPosts(ctx, service.ListPostsInput{Category: category})
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No posts found")
		return nil
	}
	for _, p := range list {
		fmt.Printf("%6d  %-40s  %-24s  %s\n", p.ID, p.Slug, p.Category, p.UpdatedAt.Format(time.DateOnly))
	}
	return nil
}

func deletePost(ctx context.Context, posts *service.PostService, raw string) error {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid post id %q", raw)
	}
	post, err := posts.GetPostByID(ctx, uint(id))
	if err != nil {
		return err
	}
	if err := posts.DeletePost(ctx, post.ID); err != nil {
		return err
	}
	fmt.Printf("Deleted %q (ID: %d) with %d step(s)\n", post.Title, post.ID, len(post.Steps))
	return nil
}

func listCategories(ctx context.Context, posts *service.PostService) error {
	summaries, err := posts.ListCategories(ctx)
	if err != nil {
		return err
	}
	for _, s := range summaries {
		fmt.Printf("%-28s %-28s %d\n", s.Name, s.Key, s.Count)
	}
	return nil
}

func sweepUploads(ctx context.Context, store upload.Store, posts repository.PostRepository, cfg *config.Config) error {
	target, ok := store.(upload.SweepTarget)
	if !ok {
		return fmt.Errorf("upload backend %q cannot be swept", store.Backend())
	}
	grace := time.Duration(cfg.UploadSweepGraceHrs) * time.Hour
	removed, err := upload.NewSweeper(target, posts.MediaReferences, grace).Sweep(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d unreferenced upload(s)\n", removed)
	return nil
}
