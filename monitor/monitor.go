package monitor

import (
	"bufio"
	"net/http"
	"os"
	"strconv"
	"time"

	"ethesis-api/config"

	"github.com/gin-gonic/gin"
)

const (
	defaultLogLines = 200
	maxLogLines     = 2000
)

var startedAt = time.Now()

// RegisterRoutes mounts the operator endpoints; callers put them behind auth and a role check.
func RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/status", status)
	group.GET("/logs", logs)
}

func status(c *gin.Context) {
	database := "ok"
	if config.DB == nil {
		database = "not initialized"
	} else if sqlDB, err := config.DB.DB(); err != nil {
		database = err.Error()
	} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		database = err.Error()
	}

	code := http.StatusOK
	if database != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"success":        code == http.StatusOK,
		"database":       database,
		"uptime_seconds": int64(time.Since(startedAt).Seconds()),
		"started_at":     startedAt.UTC().Format(time.RFC3339),
	})
}

// logs returns the tail of the application log as plain text.
func logs(c *gin.Context) {
	lines, err := strconv.Atoi(c.DefaultQuery("lines", strconv.Itoa(defaultLogLines)))
	if err != nil || lines < 1 {
		lines = defaultLogLines
	}
	if lines > maxLogLines {
		lines = maxLogLines
	}

	tail, err := tailFile(config.LogFilePath(), lines)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Unable to read log"})
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", tail)
}

func tailFile(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	var out []byte
	for _, line := range ring {
		out = append(out, line...)
		out = append(out, '\n')
	}
	return out, nil
}
