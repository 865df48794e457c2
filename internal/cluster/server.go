package cluster

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// peerRouter builds the gin engine serving the three peer RPCs. Every route
// sits behind the peer-token check.
func (dc *DistributedCache) peerRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), peerAuth(dc.auth))

	internal := r.Group("/internal")
	internal.POST("/entry", dc.putEntryRoute)
	internal.POST("/view", dc.stateViewRoute)
	internal.POST("/transfer", dc.initTransferRoute)
	return r
}

// peerAuth rejects any request without a valid internal-auth token before
// the handler runs.
func peerAuth(auth *PeerAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(AuthHeader)
		if token == "" || !auth.IsTokenValid(token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no valid auth token"})
			return
		}
		c.Next()
	}
}

func (dc *DistributedCache) putEntryRoute(c *gin.Context) {
	var req PutEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dc.handlePutEntry(req)
	c.Status(http.StatusNoContent)
}

func (dc *DistributedCache) stateViewRoute(c *gin.Context) {
	var req StateViewUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dc.log.Tracef("Got state update: %v", req.View)
	dc.handleStateView(c.Request.Context(), req.SenderOrdinal, req.View)
	c.Status(http.StatusNoContent)
}

func (dc *DistributedCache) initTransferRoute(c *gin.Context) {
	var req InitStateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dc.log.Tracef("Got state transfer request: %v", req.Baselines)
	dc.handleInitTransfer(req.ReceiverOrdinal, req.Baselines)
	c.Status(http.StatusNoContent)
}

// runPeerServer serves the peer plane on 0.0.0.0 at the template port until
// ctx is cancelled. A listen failure is returned and terminates the
// process.
func (dc *DistributedCache) runPeerServer(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", dc.BindPort()),
		Handler:      dc.peerRouter(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	dc.log.Infof("Peer RPC service is listening on %s", srv.Addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("peer server: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			dc.log.Infof("Peer server shutdown: %v", err)
		}
		return nil
	}
}
