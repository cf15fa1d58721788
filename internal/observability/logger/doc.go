// Package logger provides a singleton Zap logger for the POS bridge.
//
//   - Singleton: Una sola instancia global inicializada con Init().
//   - Environments: "dev" usa consola con colores, "prod" usa JSON.
//   - Levels: debug, info, warn, error (configurable via LOG_LEVEL).
//
// Inicialización (una vez en main.go):
//
//	logger.Init(logger.Config{
//	    Env:   cfg.App.Env,   // "dev" o "prod"
//	    Level: os.Getenv("LOG_LEVEL"),
//	})
//	defer logger.Sync()
//
// En componentes:
//
//	log := logger.Named("dispatch")
//	log.Info("payload sent", logger.GUID(guid), logger.Status(code))
package logger
