package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	clowder "github.com/redhatinsights/app-common-go/pkg/api/v1"
)

func TestLoadConfig(t *testing.T) {
	// Save original environment
	originalEnv := make(map[string]string)
	envVars := []string{
		"PORT", "PRIVATE_PORT", "METRICS_PORT", "DB_TYPE", "DB_PATH",
		"KAFKA_BROKERS", "KAFKA_TOPIC", "EXPORT_CHUNK_SIZE",
		"EXPORT_OUTPUT_DIR", "EXPORT_XLSX_ROW_CAP", "ACCESS_GATE_IMPL",
	}

	for _, key := range envVars {
		originalEnv[key] = os.Getenv(key)
		os.Unsetenv(key)
	}

	// Restore environment after test
	defer func() {
		for key, value := range originalEnv {
			if value != "" {
				os.Setenv(key, value)
			} else {
				os.Unsetenv(key)
			}
		}
	}()

	// Test default configuration
	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	// Verify default values
	if config.Server.Port != 5000 {
		t.Errorf("Expected default port 5000, got %d", config.Server.Port)
	}

	if config.Server.PrivatePort != 9090 {
		t.Errorf("Expected default private port 9090, got %d", config.Server.PrivatePort)
	}

	if config.Metrics.Port != 8080 {
		t.Errorf("Expected default metrics port 8080, got %d", config.Metrics.Port)
	}

	if config.Database.Type != "sqlite" {
		t.Errorf("Expected default database type 'sqlite', got %s", config.Database.Type)
	}

	if config.Database.Path != "./exports.db" {
		t.Errorf("Expected default database path './exports.db', got %s", config.Database.Path)
	}

	if config.Export.ChunkSize != 1000 {
		t.Errorf("Expected default chunk size 1000, got %d", config.Export.ChunkSize)
	}

	if config.Export.XLSXRowCap != 50000 {
		t.Errorf("Expected default XLSX row cap 50000, got %d", config.Export.XLSXRowCap)
	}

	if config.Driver.StepInterval != 5*time.Second {
		t.Errorf("Expected default step interval 5s, got %v", config.Driver.StepInterval)
	}

	if config.AccessGateImpl != "org" {
		t.Errorf("Expected default access gate 'org', got %s", config.AccessGateImpl)
	}

	if config.Kafka.Enabled {
		t.Error("Expected Kafka to be disabled by default")
	}

	if config.Kafka.Topic != "platform.notifications.ingress" {
		t.Errorf("Expected default Kafka topic 'platform.notifications.ingress', got %s", config.Kafka.Topic)
	}
}

func TestLoadConfigWithEnvironmentVariables(t *testing.T) {
	// Set environment variables
	os.Setenv("PORT", "8000")
	os.Setenv("PRIVATE_PORT", "9999")
	os.Setenv("METRICS_PORT", "7777")
	os.Setenv("DB_TYPE", "postgres")
	os.Setenv("DB_HOST", "localhost")
	os.Setenv("DB_PORT", "5432")
	os.Setenv("DB_NAME", "test_db")
	os.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	os.Setenv("KAFKA_TOPIC", "platform.notifications.ingress")
	os.Setenv("EXPORT_CHUNK_SIZE", "250")
	os.Setenv("EXPORT_OUTPUT_DIR", "/var/exports")
	os.Setenv("EXPORT_RETENTION", "48h")
	os.Setenv("REDIS_ADDR", "redis:6380")

	defer func() {
		// Clean up
		envVars := []string{
			"PORT", "PRIVATE_PORT", "METRICS_PORT", "DB_TYPE", "DB_HOST", "DB_PORT", "DB_NAME",
			"KAFKA_BROKERS", "KAFKA_TOPIC", "EXPORT_CHUNK_SIZE", "EXPORT_OUTPUT_DIR", "EXPORT_RETENTION", "REDIS_ADDR",
		}
		for _, key := range envVars {
			os.Unsetenv(key)
		}
	}()

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	// Verify environment values were loaded
	if config.Server.Port != 8000 {
		t.Errorf("Expected port 8000, got %d", config.Server.Port)
	}

	if config.Server.PrivatePort != 9999 {
		t.Errorf("Expected private port 9999, got %d", config.Server.PrivatePort)
	}

	if config.Metrics.Port != 7777 {
		t.Errorf("Expected metrics port 7777, got %d", config.Metrics.Port)
	}

	if config.Database.Type != "postgres" {
		t.Errorf("Expected database type 'postgres', got %s", config.Database.Type)
	}

	if config.Database.Host != "localhost" {
		t.Errorf("Expected database host 'localhost', got %s", config.Database.Host)
	}

	if !config.Kafka.Enabled {
		t.Error("Expected Kafka to be enabled when brokers are set")
	}

	if len(config.Kafka.Brokers) != 2 {
		t.Errorf("Expected 2 Kafka brokers, got %d", len(config.Kafka.Brokers))
	}

	if config.Kafka.Brokers[0] != "broker1:9092" {
		t.Errorf("Expected first broker 'broker1:9092', got %s", config.Kafka.Brokers[0])
	}

	if config.Export.ChunkSize != 250 {
		t.Errorf("Expected chunk size 250, got %d", config.Export.ChunkSize)
	}

	if config.Export.OutputDir != "/var/exports" {
		t.Errorf("Expected output dir '/var/exports', got %s", config.Export.OutputDir)
	}

	if config.Export.Retention != 48*time.Hour {
		t.Errorf("Expected retention 48h, got %v", config.Export.Retention)
	}

	if config.Redis.Addr != "redis:6380" {
		t.Errorf("Expected redis address 'redis:6380', got %s", config.Redis.Addr)
	}
}

func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name          string
		modifyConfig  func(*Config)
		expectError   bool
		errorContains string
	}{
		{
			name:         "valid config",
			modifyConfig: func(c *Config) {},
			expectError:  false,
		},
		{
			name: "invalid server port",
			modifyConfig: func(c *Config) {
				c.Server.Port = 0
			},
			expectError:   true,
			errorContains: "invalid server port",
		},
		{
			name: "invalid metrics port",
			modifyConfig: func(c *Config) {
				c.Metrics.Port = 70000
			},
			expectError:   true,
			errorContains: "invalid metrics port",
		},
		{
			name: "invalid private port",
			modifyConfig: func(c *Config) {
				c.Server.PrivatePort = -1
			},
			expectError:   true,
			errorContains: "invalid private port",
		},
		{
			name: "empty database type",
			modifyConfig: func(c *Config) {
				c.Database.Type = ""
			},
			expectError:   true,
			errorContains: "database type is required",
		},
		{
			name: "sqlite without path",
			modifyConfig: func(c *Config) {
				c.Database.Type = "sqlite"
				c.Database.Path = ""
			},
			expectError:   true,
			errorContains: "database path is required",
		},
		{
			name: "postgres without host",
			modifyConfig: func(c *Config) {
				c.Database.Type = "postgres"
				c.Database.Host = ""
			},
			expectError:   true,
			errorContains: "database host is required",
		},
		{
			name: "kafka enabled without brokers",
			modifyConfig: func(c *Config) {
				c.Kafka.Enabled = true
				c.Kafka.Brokers = []string{}
			},
			expectError:   true,
			errorContains: "kafka brokers are required",
		},
		{
			name: "kafka enabled without topic",
			modifyConfig: func(c *Config) {
				c.Kafka.Enabled = true
				c.Kafka.Brokers = []string{"broker:9092"}
				c.Kafka.Topic = ""
			},
			expectError:   true,
			errorContains: "kafka topic is required",
		},
		{
			name: "redis without address",
			modifyConfig: func(c *Config) {
				c.Database.Type = "redis"
				c.Redis.Addr = ""
			},
			expectError:   true,
			errorContains: "redis address is required",
		},
		{
			name: "empty output dir",
			modifyConfig: func(c *Config) {
				c.Export.OutputDir = ""
			},
			expectError:   true,
			errorContains: "export output directory is required",
		},
		{
			name: "zero chunk size",
			modifyConfig: func(c *Config) {
				c.Export.ChunkSize = 0
			},
			expectError:   true,
			errorContains: "invalid export chunk size",
		},
		{
			name: "negative row cap",
			modifyConfig: func(c *Config) {
				c.Export.XLSXRowCap = -5
			},
			expectError:   true,
			errorContains: "row caps must not be negative",
		},
		{
			name: "driver without interval",
			modifyConfig: func(c *Config) {
				c.Driver.StepInterval = 0
			},
			expectError:   true,
			errorContains: "invalid step interval",
		},
		{
			name: "unknown access gate",
			modifyConfig: func(c *Config) {
				c.AccessGateImpl = "ldap"
			},
			expectError:   true,
			errorContains: "unknown access gate implementation",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Create a valid base config
			config := &Config{
				Server: ServerConfig{
					Port:        5000,
					PrivatePort: 9090,
					Host:        "0.0.0.0",
				},
				Database: DatabaseConfig{
					Type: "sqlite",
					Path: "./test.db",
				},
				Kafka: KafkaConfig{
					Enabled: false,
					Topic:   "platform.notifications.ingress",
					Brokers: []string{"broker:9092"},
				},
				Metrics: MetricsConfig{
					Port:    8080,
					Enabled: true,
				},
				Redis: RedisConfig{
					Addr: "localhost:6379",
				},
				Export: ExportConfig{
					OutputDir:  "./exports",
					ChunkSize:  1000,
					XLSXRowCap: 50000,
				},
				Driver: DriverConfig{
					Enabled:      true,
					StepInterval: 5 * time.Second,
				},
				AccessGateImpl: "org",
			}

			// Apply test modification
			tc.modifyConfig(config)

			// Validate
			err := config.Validate()

			if tc.expectError {
				if err == nil {
					t.Errorf("Expected validation error, but got none")
				} else if tc.errorContains != "" && !strings.Contains(err.Error(), tc.errorContains) {
					t.Errorf("Expected error to contain '%s', but got: %v", tc.errorContains, err)
				}
			} else {
				if err != nil {
					t.Errorf("Expected no validation error, but got: %v", err)
				}
			}
		})
	}
}

func TestEnvironmentVariableParsing(t *testing.T) {
	// Test duration parsing
	os.Setenv("TEST_DURATION", "30s")
	duration := getEnvAsDuration("TEST_DURATION", 1*time.Minute)
	if duration != 30*time.Second {
		t.Errorf("Expected 30s, got %v", duration)
	}
	os.Unsetenv("TEST_DURATION")

	// Test bool parsing
	os.Setenv("TEST_BOOL", "true")
	boolVal := getEnvAsBool("TEST_BOOL", false)
	if !boolVal {
		t.Error("Expected true, got false")
	}
	os.Unsetenv("TEST_BOOL")

	// Test string slice parsing
	os.Setenv("TEST_SLICE", "item1,item2,item3")
	slice := getEnvAsStringSlice("TEST_SLICE", []string{})
	if len(slice) != 3 || slice[0] != "item1" || slice[1] != "item2" || slice[2] != "item3" {
		t.Errorf("Expected [item1, item2, item3], got %v", slice)
	}
	os.Unsetenv("TEST_SLICE")
}

func TestClowderIntegration(t *testing.T) {
	// Mock Clowder configuration
	port := 8080
	privatePort := 9999
	mockClowder := &clowder.AppConfig{
		PublicPort:  &port,
		PrivatePort: &privatePort,
		MetricsPort: 9090,
		MetricsPath: "/prometheus",
		Database: &clowder.DatabaseConfig{
			Hostname: "postgres.example.com",
			Port:     5432,
			Name:     "clowder_db",
			Username: "clowder_user",
			Password: "clowder_pass",
			SslMode:  "require",
		},
		Kafka: &clowder.KafkaConfig{
			Brokers: []clowder.BrokerConfig{
				{
					Hostname: "kafka1.example.com",
					Port:     intPtr(9092),
					Sasl: &clowder.KafkaSASLConfig{
						SaslMechanism: stringPtr("SCRAM-SHA-512"),
						Username:      stringPtr("kafka_user"),
						Password:      stringPtr("kafka_pass"),
					},
				},
			},
			Topics: []clowder.TopicConfig{
				{
					Name:          "platform.notifications.ingress",
					RequestedName: "platform.notifications.ingress",
				},
			},
		},
		InMemoryDb: &clowder.InMemoryDBConfig{
			Hostname: "redis.example.com",
			Port:     6379,
			Password: stringPtr("redis_pass"),
		},
	}

	// Test server config with Clowder
	serverConfig := loadServerConfig(mockClowder)
	if serverConfig.Port != 8080 {
		t.Errorf("Expected server port 8080, got %d", serverConfig.Port)
	}
	if serverConfig.PrivatePort != 9999 {
		t.Errorf("Expected private port 9999, got %d", serverConfig.PrivatePort)
	}

	// Test database config with Clowder
	dbConfig := loadDatabaseConfig(mockClowder)
	if dbConfig.Type != "postgres" {
		t.Errorf("Expected database type 'postgres', got %s", dbConfig.Type)
	}
	if dbConfig.Host != "postgres.example.com" {
		t.Errorf("Expected database host 'postgres.example.com', got %s", dbConfig.Host)
	}
	if dbConfig.Username != "clowder_user" {
		t.Errorf("Expected database username 'clowder_user', got %s", dbConfig.Username)
	}

	// Test Kafka config with Clowder
	kafkaConfig := loadKafkaConfig(mockClowder)
	if !kafkaConfig.Enabled {
		t.Error("Expected Kafka to be enabled with Clowder config")
	}
	if len(kafkaConfig.Brokers) != 1 {
		t.Errorf("Expected 1 Kafka broker, got %d", len(kafkaConfig.Brokers))
	}
	if kafkaConfig.Brokers[0] != "kafka1.example.com:9092" {
		t.Errorf("Expected broker 'kafka1.example.com:9092', got %s", kafkaConfig.Brokers[0])
	}
	if kafkaConfig.Topic != "platform.notifications.ingress" {
		t.Errorf("Expected topic 'platform.notifications.ingress', got %s", kafkaConfig.Topic)
	}
	if !kafkaConfig.SASL.Enabled {
		t.Error("Expected SASL to be enabled")
	}
	if kafkaConfig.SASL.Username != "kafka_user" {
		t.Errorf("Expected SASL username 'kafka_user', got %s", kafkaConfig.SASL.Username)
	}

	// Test Redis config with Clowder in-memory DB
	redisConfig := loadRedisConfig(mockClowder)
	if redisConfig.Addr != "redis.example.com:6379" {
		t.Errorf("Expected redis address 'redis.example.com:6379', got %s", redisConfig.Addr)
	}
	if redisConfig.Password != "redis_pass" {
		t.Errorf("Expected redis password from Clowder, got %s", redisConfig.Password)
	}
	if !redisConfig.Enabled {
		t.Error("Expected Clowder in-memory DB to enable redis locks")
	}

	// Test metrics config with Clowder
	metricsConfig := loadMetricsConfig(mockClowder)
	if metricsConfig.Port != 9090 {
		t.Errorf("Expected metrics port 9090, got %d", metricsConfig.Port)
	}
	if metricsConfig.Path != "/prometheus" {
		t.Errorf("Expected metrics path '/prometheus', got %s", metricsConfig.Path)
	}
}

func TestLoadBopConfig(t *testing.T) {
	t.Setenv("BOP_API_TOKEN", "token")
	t.Setenv("BOP_URL", "https://bop.example.com")
	t.Setenv("BOP_EPHEMERAL_MODE", "false")

	bop, err := loadBopConfig()
	if err != nil {
		t.Fatalf("loadBopConfig failed: %v", err)
	}
	if !bop.Enabled || bop.BaseURL != "https://bop.example.com" || bop.EphemeralMode {
		t.Errorf("Unexpected BOP config %+v", bop)
	}

	t.Setenv("BOP_ENABLED", "false")
	if bop, _ := loadBopConfig(); bop.Enabled {
		t.Error("Expected BOP_ENABLED=false to disable BOP")
	}
}

func TestGetOpenshiftNamespace(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "namespace")
	if err := os.WriteFile(path, []byte("ephemeral-abc\n"), 0644); err != nil {
		t.Fatal(err)
	}
	namespace, err := getOpenshiftNamespace(path)
	if err != nil {
		t.Fatalf("getOpenshiftNamespace failed: %v", err)
	}
	if namespace != "ephemeral-abc" {
		t.Errorf("Expected trimmed namespace, got %q", namespace)
	}

	empty := filepath.Join(dir, "empty")
	if err := os.WriteFile(empty, []byte(" \n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := getOpenshiftNamespace(empty); err == nil {
		t.Error("Expected error for empty namespace file")
	}
	if _, err := getOpenshiftNamespace(filepath.Join(dir, "missing")); err == nil {
		t.Error("Expected error for missing namespace file")
	}
}

func TestClowderKafkaBrokerWithoutPort(t *testing.T) {
	kafka := loadKafkaConfig(&clowder.AppConfig{
		Kafka: &clowder.KafkaConfig{
			Brokers: []clowder.BrokerConfig{{Hostname: "kafka.example.com"}},
		},
	})
	if len(kafka.Brokers) != 1 || kafka.Brokers[0] != "kafka.example.com:9092" {
		t.Errorf("Expected default broker port, got %v", kafka.Brokers)
	}
}

// Helper function for creating int pointers
func intPtr(i int) *int {
	return &i
}

// Helper function for creating string pointers
func stringPtr(s string) *string {
	return &s
}
