package reel

import (
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// frameCache keeps recently rendered frames keyed by FrameInfo.Key. It is
// owned by the render worker and not safe for concurrent use.
type frameCache struct {
	lru *simplelru.LRU[string, *ImageOutput]
}

func newFrameCache(size int) *frameCache {
	lru, err := simplelru.NewLRU[string, *ImageOutput](size, nil)
	if err != nil {
		// Only reachable with a non-positive size, which ServerConfig rejects.
		panic("reel: " + err.Error())
	}
	return &frameCache{lru: lru}
}

func (c *frameCache) get(key string) (*ImageOutput, bool) {
	return c.lru.Get(key)
}

func (c *frameCache) add(key string, out *ImageOutput) {
	c.lru.Add(key, out)
}

func (c *frameCache) len() int {
	return c.lru.Len()
}

func (c *frameCache) purge() {
	c.lru.Purge()
}
