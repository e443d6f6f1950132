package stores

import (
	"os"

	"github.com/sirupsen/logrus"

	"xbanner/core"
	"xbanner/stores/filesystem"
	"xbanner/stores/memory"
	"xbanner/stores/s3"
	"xbanner/stores/sqlite"
)

// GetStore picks the local template store from the STORAGE_TYPE
// environment variable: filesystem, sqlite, s3 or the in-memory default.
func GetStore() core.TemplateStore {
	storageType := os.Getenv("STORAGE_TYPE")
	var store core.TemplateStore

	storageField := logrus.Fields{
		"storageType": storageType,
	}

	switch storageType {
	case "filesystem":
		basePath := os.Getenv("LOCAL_STORAGE_PATH")
		if basePath == "" {
			basePath = "./data" // Default path
		}
		storageField["basePath"] = basePath
		store = filesystem.NewStore(basePath)
	case "sqlite":
		dataSourceName := os.Getenv("DATA_SOURCE_NAME")
		if dataSourceName == "" {
			dataSourceName = "xbanner.db" // Default filename
		}
		storageField["dataSourceName"] = dataSourceName
		store = sqlite.NewStore(dataSourceName)
	case "s3":
		bucketName := os.Getenv("S3_BUCKET_NAME")
		if bucketName == "" {
			logrus.Fatal("S3_BUCKET_NAME environment variable must be set for s3 storage type")
		}
		storageField["bucketName"] = bucketName
		store = s3.NewStore(bucketName)
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}

// GetRemote returns the cloud side of template persistence when
// CLOUD_SYNC_BUCKET is configured, nil otherwise. Sync is optional; a nil
// remote simply disables it.
func GetRemote() core.RemoteStore {
	bucketName := os.Getenv("CLOUD_SYNC_BUCKET")
	if bucketName == "" {
		logrus.Info("Cloud sync disabled (CLOUD_SYNC_BUCKET not set)")
		return nil
	}
	logrus.WithField("bucketName", bucketName).Info("Cloud sync enabled")
	return s3.NewStore(bucketName)
}
