package main

import (
	"fmt"
	"log"
	"time"

	"karl/internal"
)

// initializeServices initializes all service components
func (k *KarlServer) initializeServices() error {
	// Initialize Worker Pool
	internal.InitWorkerPool()

	// Initialize RTP Engine
	if err := k.startRTPEngine(); err != nil {
		return err
	}

	// Initialize WebRTC
	if err := k.startWebRTC(); err != nil {
		return err
	}

	// Initialize Database connections
	if err := k.initializeDatabases(); err != nil {
		return err
	}

	log.Println("✅ All services initialized successfully")
	return nil
}

// startRTPEngine initializes and starts the RTP engine
func (k *KarlServer) startRTPEngine() error {
	k.mu.RLock()
	config := k.config
	k.mu.RUnlock()

	if config == nil {
		return fmt.Errorf("❌ Configuration not loaded")
	}

	log.Println("🎬 Initializing RTP engine...")

	srtpKey := []byte(config.SRTP.Key)
	srtpSalt := []byte(config.SRTP.Salt)

	rtpControl, err := internal.NewRTPControl(srtpKey, srtpSalt)
	if err != nil {
		return fmt.Errorf("❌ Failed to initialize RTP Control: %w", err)
	}

	addr := fmt.Sprintf(":%d", config.Transport.UDPPort)
	if err := rtpControl.StartRTPListener(addr); err != nil {
		rtpControl.Stop()
		return fmt.Errorf("❌ RTP Listener failed to start: %w", err)
	}

	k.mu.Lock()
	k.rtpControl = rtpControl
	k.mu.Unlock()

	log.Printf("✅ RTP Engine started on UDP port %d", config.Transport.UDPPort)
	return nil
}

// initializeDatabases initializes database connections
func (k *KarlServer) initializeDatabases() error {
	k.mu.RLock()
	config := k.config
	k.mu.RUnlock()

	if config == nil {
		return fmt.Errorf("❌ Configuration not loaded")
	}

	// Initialize MySQL if DSN is provided
	if config.Database.MySQLDSN != "" {
		db, err := internal.NewRTPDatabase(config.Database.MySQLDSN)
		if err != nil {
			return fmt.Errorf("❌ Failed to initialize MySQL: %w", err)
		}
		k.database = db
	} else {
		log.Println("⚠️ MySQL database connection disabled (no DSN provided)")
	}

	// Initialize Redis if enabled
	if config.Database.RedisEnabled {
		redisCache := internal.NewRTPRedisCache(config) // Pass entire `config` struct
		if redisCache != nil {
			k.redisCache = redisCache
			log.Println("✅ Redis initialized successfully")

			// Start Redis maintenance routines
			go k.redisCache.AutoCleanupExpiredSessions(
				time.Duration(config.Database.RedisCleanupInterval) * time.Second,
			)
			go k.redisCache.CheckRedisHealth(30 * time.Second)
		}
	}

	internal.RegisterJitterBufferPersistence(k.redisCache, k.database)

	return nil
}

// startMetrics initializes and starts the metrics collection
func (k *KarlServer) startMetrics() {
	// Initialize Prometheus metrics
	internal.InitMetrics()

	if err := internal.StartMetricsServer(":9091"); err != nil {
		log.Printf("⚠️ Metrics server failed to start: %v", err)
	}

	// Initialize PCAP capture if enabled
	k.mu.RLock()
	if k.config.RTPSettings.EnablePCAP {
		internal.InitPCAPCapture()
		log.Println("✅ PCAP capture initialized")
	}
	k.mu.RUnlock()

	internal.StartRTCPXRReporter(10 * time.Second)

	log.Println("✅ Metrics collection started")
}

