package repository

import (
	"context"
	"errors"
	"time"

	"portfolio-miner/internal/common"
	"portfolio-miner/internal/domain"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// scoredProjectRow 一次运行中的一个项目
type scoredProjectRow struct {
	RunID     string               `gorm:"primaryKey;size:36"`
	RepoID    int64                `gorm:"primaryKey;autoIncrement:false"`
	Rank      int                  `gorm:"index"`
	FullName  string               `gorm:"index;size:255"`
	Score     float64
	Payload   domain.ScoredProject `gorm:"serializer:json;type:jsonb"`
	CreatedAt time.Time            `gorm:"index"`
}

func (scoredProjectRow) TableName() string {
	return "scored_projects"
}

// PostgresStore 实现了 port.ProjectStore 接口
type PostgresStore struct {
	db  *gorm.DB
	log *logrus.Entry
}

// NewPostgresStore 初始化数据库连接并自动迁移表结构
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, common.NewError(common.ErrCodeConfig, "数据库 DSN 不能为空")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "连接数据库失败", err)
	}

	// 表结构变化时自动补齐字段
	if err := db.AutoMigrate(&scoredProjectRow{}); err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "数据库迁移失败", err)
	}

	return NewStoreFromDB(db), nil
}

// NewStoreFromDB 使用已有连接 (测试时传入 sqlmock)
func NewStoreFromDB(db *gorm.DB) *PostgresStore {
	return &PostgresStore{
		db:  db,
		log: logrus.WithField("component", "store"),
	}
}

// SaveRun 在一个事务中写入本次运行的全部结果，名次按传入顺序
func (s *PostgresStore) SaveRun(ctx context.Context, runID string, projects []domain.ScoredProject) error {
	if runID == "" {
		return common.NewError(common.ErrCodeInvalidInput, "runID 不能为空")
	}
	if len(projects) == 0 {
		s.log.Infof("📭 运行 %s 没有结果，跳过保存", runID)
		return nil
	}

	now := time.Now().UTC()
	rows := make([]scoredProjectRow, 0, len(projects))
	for i, p := range projects {
		rows = append(rows, scoredProjectRow{
			RunID:     runID,
			RepoID:    p.ID,
			Rank:      i + 1,
			FullName:  p.FullName,
			Score:     p.Score,
			Payload:   p,
			CreatedAt: now,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
	if err != nil {
		return common.WrapError(common.ErrCodeDatabase, "保存运行结果失败", err)
	}

	s.log.Infof("💾 运行 %s 已保存 %d 个项目", runID, len(rows))
	return nil
}

// LatestRun 最近一次运行的结果，按名次排序；没有记录时返回空列表
func (s *PostgresStore) LatestRun(ctx context.Context) ([]domain.ScoredProject, error) {
	var latest scoredProjectRow
	err := s.db.WithContext(ctx).Order("created_at DESC").Take(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []domain.ScoredProject{}, nil
	}
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "查询最近一次运行失败", err)
	}

	var rows []scoredProjectRow
	err = s.db.WithContext(ctx).
		Where("run_id = ?", latest.RunID).
		Order("rank ASC").
		Find(&rows).Error
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "查询运行结果失败", err)
	}
	return payloads(rows), nil
}

// History 某个仓库在历次运行中的结果 (最新的在前)
func (s *PostgresStore) History(ctx context.Context, fullName string, limit int) ([]domain.ScoredProject, error) {
	if limit <= 0 {
		limit = 10
	}

	var rows []scoredProjectRow
	err := s.db.WithContext(ctx).
		Where("full_name = ?", fullName).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "查询历史记录失败", err)
	}
	return payloads(rows), nil
}

func payloads(rows []scoredProjectRow) []domain.ScoredProject {
	out := make([]domain.ScoredProject, 0, len(rows))
	for _, row := range rows {
		p := row.Payload
		// 列上的分数为准
		p.Score = row.Score
		out = append(out, p)
	}
	return out
}
